package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript cria/incrementa o contador da janela de forma atômica.
// Só aplica PEXPIRE quando o contador nasce, então a janela fica ancorada
// na primeira requisição. Contador cheio não é incrementado.
//
// KEYS[1] = chave da janela
// ARGV[1] = max
// ARGV[2] = janela em ms
// Retorna {allowed (0|1), count, pttl}
var takeScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= max then
	return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current, redis.call('PTTL', KEYS[1])}
`)

// RedisWindowStore implementa domain.WindowStore sobre Redis, compartilhado
// entre todas as instâncias do gateway.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{rdb: rdb, prefix: "ratelimit"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Take(ctx context.Context, key string, max int, window time.Duration) (bool, int, time.Duration, error) {
	res, err := takeScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, max, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("ratelimit take %q: %w", key, err)
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("ratelimit take %q: unexpected script result %v", key, res)
	}

	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		// -1 (sem expiração) ou -2 (inexistente) não deveriam acontecer; assume janela cheia.
		ttl = window
	}
	return res[0] == 1, int(res[1]), ttl, nil
}
