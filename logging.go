package ldapfetch

import (
	"reflect"
	"strings"

	log "github.com/sirupsen/logrus"
)

const redacted = "<redacted>"

// logConfig prints every configuration field when Debug is set. Password
// fields only show whether they are set.
func logConfig(config *Config) {
	if !config.Debug {
		return
	}

	v := reflect.ValueOf(*config)
	typeOfS := v.Type()

	fields := make(log.Fields, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		name := typeOfS.Field(i).Name
		value := v.Field(i).Interface()
		if strings.Contains(strings.ToLower(name), "password") {
			if v.Field(i).IsZero() {
				value = ""
			} else {
				value = redacted
			}
		}
		fields[name] = value
	}
	log.WithFields(fields).Info("configuration")
}
