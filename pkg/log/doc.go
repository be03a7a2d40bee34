// Package log provides the logging abstraction used across webrun.
//
// Components log through the Logger interface so that the runner, the
// lifecycle coordinator and plugins never depend on a concrete logging
// library. A zerolog-backed adapter is the default; NoopLogger discards
// everything and is meant for tests.
//
// # Usage
//
//	fc, err := log.LoadFileConfig(log.ResolveConfigPath(os.Getenv("webapp.log.config")))
//	if err != nil {
//	    return err
//	}
//	logger := log.NewZerologAdapterFromConfig(fc, os.Stderr)
//	logger.Info("server started", log.Int("port", 8080))
//
// # Log configuration file
//
// The log configuration file is TOML. When no path is configured the file
// DefaultConfigFile is looked up in the working directory. A missing file
// is not an error; defaults apply.
//
//	level   = "debug"
//	format  = "json"
//	service = "storefront"
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
