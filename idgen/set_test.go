package idgen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/xerrors"
)

func TestSet(t *testing.T) {
	s, err := NewSet(&Config{
		Location: "UTC",
		Templates: map[string]string{
			"order": "ORD{TimeCount=20060102,,%s%04d}",
			"trace": "{UUID=v7,compact}",
		},
	}, nil, fixedClock(0))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"order", "trace"}, s.Names())

	id, err := s.Generate(context.Background(), "order")
	require.NoError(t, err)
	assert.Equal(t, "ORD197001010000", id)

	ids, err := s.GenerateBatch(context.Background(), "trace", 3)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	g, err := s.Get("order")
	require.NoError(t, err)
	assert.Equal(t, "ORD{TimeCount=20060102,,%s%04d}", g.Spec())

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	adhoc, err := s.GenerateSpec(context.Background(), "X-{Const=1}", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"X-1", "X-1"}, adhoc)
}

func TestNewSetErrors(t *testing.T) {
	_, err := NewSet(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewSet(&Config{Location: "Mars/Olympus"}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewSet(&Config{Templates: map[string]string{"": "{UUID}"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewSet(&Config{Templates: map[string]string{
		"good": "{UUID}",
		"bad":  "{Nope}",
	}}, nil)
	require.ErrorIs(t, err, ErrUnknownComponentType)
	assert.True(t, strings.Contains(err.Error(), `"bad"`))
}
