package commandbroker

import "github.com/google/uuid"

// IDGenerator produces a new entity id. The default generator produces
// RFC 4122 version-1 (time-based) UUIDs, which sort close to ingestion
// order even though the broker offset is the authoritative order within
// a partition (spec §9, "Time-ordered UUID").
type IDGenerator func() (string, error)

// DefaultIDGenerator generates a time-ordered UUID using the host's
// clock sequence and (software-simulated) node id. uuid.NewUUID can fail
// only if it is unable to read random data for the node id on the very
// first call; callers that cannot tolerate that should supply their own
// IDGenerator (e.g. a Snowflake-style generator).
var DefaultIDGenerator IDGenerator = func() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
