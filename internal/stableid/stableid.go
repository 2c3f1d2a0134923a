// Package stableid derives the short permanent identifiers exposed in exports
// and deep links.
package stableid

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
)

// Alphabet holds the id digits: 0-9 and letters minus the look-alikes I, O, i, l and o.
// The base of the encoding is len(Alphabet).
const Alphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

// Length of every stable id.
const Length = 6

// ErrExhausted is returned when every perturbation of the last character is taken.
var ErrExhausted = errors.New("stable id collision unresolved")

// Set holds ids already handed out.
type Set map[string]struct{}

// Has reports whether id is taken.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Candidate hashes "manufacturer:code" with SHA-256 and encodes the first four
// bytes, big-endian, as Length digits of Alphabet.
func Candidate(manufacturer, code string) string {
	sum := sha256.Sum256([]byte(manufacturer + ":" + code))
	n := binary.BigEndian.Uint32(sum[:4])
	base := uint32(len(Alphabet))
	var id [Length]byte
	for i := Length - 1; i >= 0; i-- {
		id[i] = Alphabet[n%base]
		n /= base
	}
	return string(id[:])
}

// Generate returns the candidate id, or on collision with taken advances the
// last character by the attempt number (wrapping) until a free id turns up.
// The offsets from the candidate add up to 1, 3, 6, 10... so some last
// characters are never tried before ErrExhausted.
// attempts is zero when the candidate was free. taken is not modified.
func Generate(manufacturer, code string, taken Set) (id string, attempts int, err error) {
	id = Candidate(manufacturer, code)
	for taken.Has(id) {
		attempts++
		if attempts > len(Alphabet) {
			return "", attempts, fmt.Errorf("%w: %s:%s after %d attempts", ErrExhausted, manufacturer, code, attempts-1)
		}
		last := strings.IndexByte(Alphabet, id[Length-1])
		id = id[:Length-1] + string(Alphabet[(last+attempts)%len(Alphabet)])
	}
	return id, attempts, nil
}

// Collision records a resolved hash collision.
type Collision struct {
	Key       string `json:"key"`
	Candidate string `json:"candidate"`
	ID        string `json:"id"`
	Attempts  int    `json:"attempts"`
}

// Result summarizes an Assign pass.
type Result struct {
	Existing   int         `json:"existing"`
	Assigned   int         `json:"assigned"`
	Collisions []Collision `json:"collisions,omitempty"`
}

// Assign gives every product without a stable id a new one. Products are
// visited in ascending key order and ids that are already set are never
// changed. On error, products visited before the failure keep their new ids.
func Assign(products map[string]*model.Product) (Result, error) {
	var res Result
	taken := make(Set, len(products))
	var missing []string
	for k, p := range products {
		if p.StableID != "" {
			taken[p.StableID] = struct{}{}
			res.Existing++
			continue
		}
		missing = append(missing, k)
	}
	if len(missing) == 0 {
		return res, nil
	}
	sort.Strings(missing)
	obs.Logger.Info("stable_id_assign_begin", "existing", res.Existing, "missing", len(missing))

	for _, k := range missing {
		p := products[k]
		id, attempts, err := Generate(p.Manufacturer, p.Code, taken)
		if err != nil {
			return res, err
		}
		if attempts > 0 {
			c := Collision{Key: k, Candidate: Candidate(p.Manufacturer, p.Code), ID: id, Attempts: attempts}
			res.Collisions = append(res.Collisions, c)
			obs.Logger.Warn("stable_id_collision", "key", k, "candidate", c.Candidate, "id", id, "attempts", attempts)
		}
		p.StableID = id
		taken[id] = struct{}{}
		res.Assigned++
	}
	obs.Logger.Info("stable_id_assign_done", "assigned", res.Assigned, "collisions", len(res.Collisions))
	return res, nil
}
