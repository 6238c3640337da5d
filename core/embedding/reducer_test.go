package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoGroupRows(perSide int) [][]float64 {
	dim := 2 + 2*perSide
	var rows [][]float64
	for side := 0; side < 2; side++ {
		for i := 0; i < perSide; i++ {
			v := make([]float64, dim)
			v[side] = 1
			v[2+side*perSide+i] = 0.05
			rows = append(rows, v)
		}
	}
	return rows
}

func centroid(rows [][]float64) []float64 {
	out := make([]float64, len(rows[0]))
	for _, r := range rows {
		for i, v := range r {
			out[i] += v / float64(len(rows))
		}
	}
	return out
}

func TestNewReducer(t *testing.T) {
	t.Run("Neighbourhood sizes follow the number of points", func(t *testing.T) {
		small := NewReducer(3, 42)
		assert.Equal(t, 2, small.Components)
		assert.Equal(t, 2, small.Neighbors)

		medium := NewReducer(10, 42)
		assert.Equal(t, 5, medium.Components)
		assert.Equal(t, 9, medium.Neighbors)

		large := NewReducer(500, 42)
		assert.Equal(t, 5, large.Components)
		assert.Equal(t, 15, large.Neighbors)
	})

	t.Run("Output has one row per input and the requested width", func(t *testing.T) {
		items, _, _ := twoTopicItems(4)
		data := make([][]float64, len(items))
		for i, item := range items {
			data[i] = make([]float64, len(item.Vector))
			for j, v := range item.Vector {
				data[i][j] = float64(v)
			}
		}
		r := NewReducer(len(data), 42)
		out, err := r.FitTransform(context.Background(), data)
		require.NoError(t, err)
		require.Len(t, out, len(data))
		for _, row := range out {
			assert.Len(t, row, r.Components)
		}
	})

	t.Run("Large inputs use fewer epochs", func(t *testing.T) {
		assert.Equal(t, 500, NewReducer(4, 1).Epochs)
		assert.Equal(t, 200, NewReducer(20000, 1).Epochs)
	})
}

func TestReducerFitTransform(t *testing.T) {
	ctx := context.Background()

	t.Run("Keeps the groups apart", func(t *testing.T) {
		rows := twoGroupRows(8)
		out, err := NewReducer(len(rows), 42).FitTransform(ctx, rows)
		require.NoError(t, err, "Expected FitTransform to not return an error")
		require.Len(t, out, len(rows))
		assert.Len(t, out[0], 5)

		first, second := out[:8], out[8:]
		c1, c2 := centroid(first), centroid(second)
		between := euclidean(c1, c2)
		for _, p := range first {
			assert.Less(t, euclidean(p, c1), between, "Expected points closer to their own group")
		}
		for _, p := range second {
			assert.Less(t, euclidean(p, c2), between, "Expected points closer to their own group")
		}
	})

	t.Run("Same seed gives the same layout", func(t *testing.T) {
		rows := twoGroupRows(6)
		a, err := NewReducer(len(rows), 7).FitTransform(ctx, rows)
		require.NoError(t, err)
		b, err := NewReducer(len(rows), 7).FitTransform(ctx, rows)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Too few points", func(t *testing.T) {
		_, err := NewReducer(1, 1).FitTransform(ctx, [][]float64{{1, 0}})
		assert.Error(t, err)
	})

	t.Run("Mismatched dimensions", func(t *testing.T) {
		_, err := NewReducer(2, 1).FitTransform(ctx, [][]float64{{1, 0}, {1, 0, 0}})
		assert.Error(t, err)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewReducer(4, 1).FitTransform(cancelled, twoGroupRows(2))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
