package sbd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smce-go/runner/internal/config"
)

// Invariant 1: after a successful configure, the shm region name equals
// SMCE-Runner-{id} and the pin sequence is strictly ascending by id.
func TestConfigureNameAndPinOrdering(t *testing.T) {
	cfg := config.BoardConfig{PinIDs: []config.PinID{9, 1, 5}}
	s, err := Configure("arduino:avr:uno", cfg)
	require.NoError(t, err)
	defer func() { _ = s.Reset() }()

	assert.Equal(t, fmt.Sprintf("SMCE-Runner-%d", s.SketchID()), s.Name())

	pins := s.BoardData().Pins()
	require.Len(t, pins, 3)
	for i := 1; i < len(pins); i++ {
		assert.Less(t, pins[i-1].ID(), pins[i].ID())
	}
}

func TestResetClearsBoardData(t *testing.T) {
	s, err := Configure("arduino:avr:uno", config.BoardConfig{PinIDs: []config.PinID{1}})
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.Equal(t, "", s.Name())
	assert.Nil(t, s.BoardData())
}

// Reconfigure must preserve sketch identity (name, id) while discarding and
// rebuilding the BoardData root, mirroring rebuild()'s effect on shared
// board state in the original implementation this is grounded on.
func TestReconfigurePreservesSketchIdentity(t *testing.T) {
	s, err := Configure("arduino:avr:uno", config.BoardConfig{PinIDs: []config.PinID{1}})
	require.NoError(t, err)
	defer func() { _ = s.Reset() }()

	id := s.SketchID()
	name := s.Name()

	require.NoError(t, s.Reconfigure(config.BoardConfig{PinIDs: []config.PinID{2, 3}}))

	assert.Equal(t, id, s.SketchID())
	assert.Equal(t, name, s.Name())

	pins := s.BoardData().Pins()
	require.Len(t, pins, 2)
	assert.Equal(t, config.PinID(2), pins[0].ID())
	assert.Equal(t, config.PinID(3), pins[1].ID())
}

// Reconfigure bumps the BoardData generation counter so an embedder
// holding a stale BoardView can detect that the board was rebuilt.
func TestReconfigureBumpsRevision(t *testing.T) {
	s, err := Configure("arduino:avr:uno", config.BoardConfig{PinIDs: []config.PinID{1}})
	require.NoError(t, err)
	defer func() { _ = s.Reset() }()

	assert.Equal(t, uint64(1), s.Revision())
	assert.Equal(t, uint64(1), s.BoardData().Revision())

	require.NoError(t, s.Reconfigure(config.BoardConfig{PinIDs: []config.PinID{1}}))
	assert.Equal(t, uint64(2), s.Revision())
	assert.Equal(t, uint64(2), s.BoardData().Revision())

	require.NoError(t, s.Reconfigure(config.BoardConfig{PinIDs: []config.PinID{1}}))
	assert.Equal(t, uint64(3), s.Revision())
}

func TestConfigureTwiceYieldsDistinctSketchIDs(t *testing.T) {
	s1, err := Configure("fqbn", config.BoardConfig{})
	require.NoError(t, err)
	defer func() { _ = s1.Reset() }()

	s2, err := Configure("fqbn", config.BoardConfig{})
	require.NoError(t, err)
	defer func() { _ = s2.Reset() }()

	assert.NotEqual(t, s1.SketchID(), s2.SketchID())
	assert.NotEqual(t, s1.Name(), s2.Name())
}
