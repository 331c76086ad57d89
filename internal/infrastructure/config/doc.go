// Package config loads and validates ratgdo-core configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// (RATGDO_SECTION_KEY pattern). Defaults are applied before the file is
// read, so a minimal config file only needs the values that differ.
package config
