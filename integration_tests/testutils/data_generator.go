package testutils

import (
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/brianvoe/gofakeit/v7"
)

// TestDataGenerator provides methods to create test data for integration tests
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewTestDataGenerator creates a new test data generator with optional seed
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	var s int64
	if len(seed) > 0 {
		s = seed[0]
	} else {
		s = time.Now().UnixNano()
	}
	return &TestDataGenerator{
		faker: gofakeit.New(uint64(s)),
		seed:  s,
	}
}

// Seed returns the seed, for reproducing a failing run.
func (g *TestDataGenerator) Seed() int64 {
	return g.seed
}

// Participant is a generated player.
type Participant struct {
	ID          rankingdomain.ParticipantID
	DisplayName string
}

// GenerateParticipants creates count players with distinct ids.
func (g *TestDataGenerator) GenerateParticipants(count int) []Participant {
	out := make([]Participant, count)
	seen := make(map[rankingdomain.ParticipantID]bool, count)
	for i := range out {
		id := rankingdomain.ParticipantID(g.faker.Numerify("steam-##########"))
		for seen[id] {
			id = rankingdomain.ParticipantID(g.faker.Numerify("steam-##########"))
		}
		seen[id] = true
		out[i] = Participant{ID: id, DisplayName: g.faker.Username()}
	}
	return out
}

// GenerateMapIDs creates count distinct map ids.
func (g *TestDataGenerator) GenerateMapIDs(count int) []rankingdomain.MapID {
	out := make([]rankingdomain.MapID, 0, count)
	seen := make(map[rankingdomain.MapID]bool, count)
	for len(out) < count {
		id := rankingdomain.MapID(g.faker.LetterN(3) + "_" + g.faker.Noun())
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// GenerateFinishes creates one finish per participant on mapID with a random
// time between 20 and 180 seconds, arriving one second apart from start.
func (g *TestDataGenerator) GenerateFinishes(mapID rankingdomain.MapID, participants []Participant, start time.Time) []rankingdomain.FinishEvent {
	out := make([]rankingdomain.FinishEvent, len(participants))
	for i, p := range participants {
		out[i] = rankingdomain.FinishEvent{
			ParticipantID: p.ID,
			MapID:         mapID,
			TimeMs:        int64(g.faker.Number(20_000, 180_000)),
			ArrivedAt:     start.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}
