package session

import (
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeState(t *testing.T) {
	st, err := decodeState(nil, redis.Nil)
	require.NoError(t, err, "a missing key is an empty session")
	assert.Equal(t, State{}, st)

	_, err = decodeState(nil, errors.New("connection refused"))
	assert.Error(t, err)

	_, err = decodeState([]byte("{not json"), nil)
	assert.Error(t, err)

	st, err = decodeState([]byte(`{"question":"q","loading":true,"file":{"name":"a.pdf","type":"application/pdf","size":2,"data":"aGk="}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "q", st.Question)
	assert.True(t, st.Loading)
	require.NotNil(t, st.File)
	assert.Equal(t, []byte("hi"), st.File.Data)
}

func TestRedisExpiry(t *testing.T) {
	assert.Equal(t, time.Duration(0), (&RedisStore{}).expiry())
	assert.Equal(t, time.Hour, (&RedisStore{ttl: time.Hour}).expiry())
}
