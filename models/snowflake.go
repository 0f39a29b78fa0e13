package models

import "regexp"

// snowflakePattern matches Discord IDs (guilds, channels, roles, messages)
var snowflakePattern = regexp.MustCompile(`^\d{17,20}$`)

// IsSnowflake reports whether id is a well-formed platform ID
func IsSnowflake(id string) bool {
	return snowflakePattern.MatchString(id)
}
