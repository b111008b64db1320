package cache

import (
	"net/url"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKey_IncludesFingerprint(t *testing.T) {
	q := url.Values{"team": {"CSK"}}

	before := Key("csv:data.csv:100:1", "team-record", q)
	after := Key("csv:data.csv:120:2", "team-record", q)

	assert.NotEqual(t, before, after)
	assert.Equal(t, "iplstats:csv:data.csv:100:1:team-record:team=CSK", before)
}

func TestKey_CanonicalQuery(t *testing.T) {
	a := Key("fp", "teamvteam", url.Values{"team1": {"CSK"}, "team2": {" MI "}})
	b := Key("fp", "teamvteam", url.Values{"team2": {"MI"}, "team1": {"CSK"}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Key("fp", "teamvteam", url.Values{"team1": {"MI"}, "team2": {"CSK"}}))
	assert.Equal(t, "iplstats:fp:teams:", Key("fp", "teams", nil))
}

func TestNewRedisCacheFromClient_DefaultTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	rc := NewRedisCacheFromClient(client, 0)
	assert.Equal(t, DefaultTTL, rc.TTL())
	assert.Same(t, client, rc.Client())
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache("not a url", DefaultTTL)
	assert.Error(t, err)
}
