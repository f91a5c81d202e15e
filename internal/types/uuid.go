package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex red_01HZX3K6N2Q5V8TQ0C9W4M7B1D
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

// initializeSID initializes the shortid generator once
func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns an uppercase alphanumeric short ID with a prefix,
// capped at maxLen characters, e.g. `SPRING7XQ2KD`.
func GenerateShortIDWithPrefix(prefix string, maxLen int) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	// shortid's alphabet includes '-' and '_'
	id = strings.NewReplacer("-", "", "_", "").Replace(id)

	availableLen := maxLen - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(prefix + id)
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_SUBSCRIPTION       = "subs"
	UUID_PREFIX_PRORATION_EVENT    = "pror"
	UUID_PREFIX_COUPON             = "coupon"
	UUID_PREFIX_CAMPAIGN           = "camp"
	UUID_PREFIX_VALIDATION_RULE    = "rule"
	UUID_PREFIX_REDEMPTION         = "red"
	UUID_PREFIX_REDEMPTION_ATTEMPT = "attempt"
	UUID_PREFIX_FRAUD_DETECTION    = "fraud"
	UUID_PREFIX_EVENT              = "event"
)
