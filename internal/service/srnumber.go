package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// srNumberAttempts bounds the collision probe loop.
const srNumberAttempts = 100

// ExistsFunc probes whether a candidate SR number is already taken.
type ExistsFunc func(ctx context.Context, srNumber string) (bool, error)

// SRNumberGenerator produces human-readable SR numbers of the form
// SR-YYYYMMDD-HHMMSS-#### where the suffix is a 4-digit counter seeded
// from sub-second precision.
type SRNumberGenerator struct {
	now     func() time.Time
	randInt func(n int) int
}

// NewSRNumberGenerator builds a generator on the real clock.
func NewSRNumberGenerator() *SRNumberGenerator {
	return &SRNumberGenerator{
		now:     time.Now,
		randInt: rand.Intn,
	}
}

// Generate composes a candidate and probes for collisions, incrementing
// the counter modulo 10000 on each hit. After the attempt budget it falls
// back to a random suffix; that fallback carries no uniqueness guarantee
// and relies on the storage constraint to catch the pathological case.
func (g *SRNumberGenerator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	now := g.now()
	datePart := now.Format("20060102")
	timePart := now.Format("150405")
	counter := now.Nanosecond() / 1000 / 100

	for i := 0; i < srNumberAttempts; i++ {
		candidate := fmt.Sprintf("SR-%s-%s-%04d", datePart, timePart, counter%10000)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		counter = (counter + 1) % 10000
	}

	return fmt.Sprintf("SR-%s-%s-%04d", datePart, timePart, 1000+g.randInt(9000)), nil
}
