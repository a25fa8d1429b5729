package main

// this file contains all the code that directly uses the viper package,
// so site configuration stays in one place.

import (
	"flag"

	"github.com/spf13/viper"
)

// applySiteDefaults reads deployment defaults from a 'sonar.toml' file in
// the working directory or /etc/sonar and applies them to any flag the
// user did not set explicitly. Flags always win over the config file.
//
// Recognized keys: bias, depth, altitude, out, db, tuning.
func applySiteDefaults() bool {
	viper.SetConfigName("sonar")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/sonar")
	if err := viper.ReadInConfig(); err != nil {
		return false
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["bias"] && viper.IsSet("bias") {
		*bearingBias = viper.GetFloat64("bias")
	}
	if !set["depth"] && viper.IsSet("depth") {
		*sonarDepth = viper.GetFloat64("depth")
	}
	if !set["altitude"] && viper.IsSet("altitude") {
		*sonarAlt = viper.GetFloat64("altitude")
	}
	if !set["out"] && viper.IsSet("out") {
		*outDir = viper.GetString("out")
	}
	if !set["db"] && viper.IsSet("db") {
		*dbPath = viper.GetString("db")
	}
	if !set["tuning"] && viper.IsSet("tuning") {
		*tuningPath = viper.GetString("tuning")
	}
	return true
}
