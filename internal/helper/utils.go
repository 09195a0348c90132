package helper

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID returns a random UUID string. uuid.NewRandom only fails when
// the OS entropy source does, in which case the time-seeded fallback still
// yields a usable identifier.
func GenerateUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Warn().Err(err).Msg("random uuid failed, falling back to v1")
		return uuid.Must(uuid.NewUUID()).String()
	}
	return id.String()
}

// PrettyPrint dumps a value as indented JSON to stdout.
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("pretty print failed")
		return
	}
	fmt.Println(string(b))
}
