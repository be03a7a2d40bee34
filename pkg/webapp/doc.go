// Package webapp is the web application unit the runner hosts: a chi router
// mounted under a context path, with static resources, cookie hardening and
// server-class visibility rules for runner-provided components.
package webapp
