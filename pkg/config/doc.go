// Package config loads process configuration from the environment.
//
// Variables are read with the JOBQUEUE_ prefix, after an optional .env file in
// the working directory has been loaded. Unset variables take the defaults in
// the Config struct tags.
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
