package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kl8-predictor/internal/config"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/testutil"
)

func TestManager(t *testing.T) {
	t.Parallel()

	m := NewManager(config.DefaultWeights())
	assert.Equal(t, []string{"composite", "random"}, m.Available())
	assert.Equal(t, "composite", m.Current().GetName())

	err := m.SetCurrent("nope")
	assert.ErrorIs(t, err, draw.ErrInvalidArgument)
	assert.Equal(t, "composite", m.Current().GetName())

	require.NoError(t, m.SetCurrent("random"))
	model, err := m.Train(draw.MustNewSet(nil), seeded(1))
	require.NoError(t, err)
	picks, err := model.Predict(5)
	require.NoError(t, err)
	assert.Len(t, picks, 5)
}

func TestCompositePredictor_ValidateInput(t *testing.T) {
	t.Parallel()

	p := NewCompositePredictor(config.DefaultWeights())
	assert.Equal(t, "v1.0", p.GetVersion())

	_, err := p.Train(draw.MustNewSet(nil), seeded(1))
	assert.ErrorIs(t, err, draw.ErrInsufficientHistory)

	model, err := p.Train(testutil.ConsecutiveDays(3), seeded(1))
	require.NoError(t, err)
	_, ok := model.(*Engine)
	assert.True(t, ok)
}
