package stableid

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
)

func TestAlphabetHasNoLookAlikes(t *testing.T) {
	assert.Len(t, Alphabet, 57)
	for _, c := range "IOilo" {
		assert.False(t, strings.ContainsRune(Alphabet, c), string(c))
	}
}

func TestCandidateGolden(t *testing.T) {
	cases := map[[2]string]string{
		{"BB", "001"}:  "4UBG43",
		{"BB", "002"}:  "0R4dnG",
		{"CIM", "511"}: "4GEgFR",
		{"DH", "X1"}:   "4JgnwW",
	}
	for in, want := range cases {
		assert.Equal(t, want, Candidate(in[0], in[1]), in)
	}
}

func TestGenerateIsPure(t *testing.T) {
	a, n1, err := Generate("BB", "001", nil)
	require.NoError(t, err)
	b, n2, err := Generate("BB", "001", Set{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Zero(t, n1)
	assert.Zero(t, n2)
	assert.Len(t, a, Length)
}

func TestGenerateCollision(t *testing.T) {
	taken := Set{"4UBG43": {}}
	id, attempts, err := Generate("BB", "001", taken)
	require.NoError(t, err)
	assert.Equal(t, "4UBG44", id)
	assert.Equal(t, 1, attempts)
	assert.Len(t, taken, 1, "taken must not be modified")

	taken["4UBG44"] = struct{}{}
	id, attempts, err = Generate("BB", "001", taken)
	require.NoError(t, err)
	assert.Equal(t, "4UBG46", id)
	assert.Equal(t, 2, attempts)
}

func TestGenerateWrapsAlphabet(t *testing.T) {
	// candidate for DH:X1 ends in 'W'; push it past the end of the alphabet
	taken := Set{}
	id := "4JgnwW"
	for i := 1; i <= 3; i++ {
		taken[id] = struct{}{}
		last := strings.IndexByte(Alphabet, id[Length-1])
		id = id[:Length-1] + string(Alphabet[(last+i)%len(Alphabet)])
	}
	got, attempts, err := Generate("DH", "X1", taken)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 3, attempts)
}

func TestGenerateExhausted(t *testing.T) {
	taken := Set{}
	prefix := "4UBG4"
	for _, c := range Alphabet {
		taken[prefix+string(c)] = struct{}{}
	}
	_, _, err := Generate("BB", "001", taken)
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestGenerateVisitsTriangularOffsetsOnly(t *testing.T) {
	cand := Candidate("BB", "001")
	start := strings.IndexByte(Alphabet, cand[Length-1])
	variant := func(off int) string {
		return cand[:Length-1] + string(Alphabet[(start+off)%len(Alphabet)])
	}

	taken := Set{}
	off := 0
	for k := 0; k <= len(Alphabet); k++ {
		off += k
		taken[variant(off)] = struct{}{}
	}
	require.Less(t, len(taken), len(Alphabet))

	_, attempts, err := Generate("BB", "001", taken)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, len(Alphabet)+1, attempts)
}

func product(mfr, code, id string) *model.Product {
	p := model.NewProduct(model.Row{Manufacturer: mfr, Code: code})
	p.StableID = id
	return p
}

func TestAssignFillsMissingOnly(t *testing.T) {
	products := map[string]*model.Product{
		"BB:001":  product("BB", "001", ""),
		"BB:002":  product("BB", "002", "keepme"),
		"CIM:511": product("CIM", "511", ""),
	}
	res, err := Assign(products)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, 1, res.Existing)
	assert.Empty(t, res.Collisions)
	assert.Equal(t, "4UBG43", products["BB:001"].StableID)
	assert.Equal(t, "keepme", products["BB:002"].StableID)
	assert.Equal(t, "4GEgFR", products["CIM:511"].StableID)

	again, err := Assign(products)
	require.NoError(t, err)
	assert.Zero(t, again.Assigned)
	assert.Equal(t, 3, again.Existing)
}

func TestAssignNeverOverwritesOnCollision(t *testing.T) {
	// BB:002 already owns the id BB:001 would hash to.
	products := map[string]*model.Product{
		"BB:001": product("BB", "001", ""),
		"BB:002": product("BB", "002", "4UBG43"),
	}
	res, err := Assign(products)
	require.NoError(t, err)
	assert.Equal(t, "4UBG43", products["BB:002"].StableID)
	assert.Equal(t, "4UBG44", products["BB:001"].StableID)
	require.Len(t, res.Collisions, 1)
	assert.Equal(t, Collision{Key: "BB:001", Candidate: "4UBG43", ID: "4UBG44", Attempts: 1}, res.Collisions[0])
}

func TestAssignThreadsTakenSetInKeyOrder(t *testing.T) {
	// two products without ids whose candidates collide with each other: the
	// lexically smaller key wins the candidate.
	products := map[string]*model.Product{
		"ZZ:1": product("BB", "001", ""),
		"AA:1": product("BB", "001", ""),
	}
	res, err := Assign(products)
	require.NoError(t, err)
	assert.Equal(t, "4UBG43", products["AA:1"].StableID)
	assert.Equal(t, "4UBG44", products["ZZ:1"].StableID)
	require.Len(t, res.Collisions, 1)
	assert.Equal(t, "ZZ:1", res.Collisions[0].Key)
}
