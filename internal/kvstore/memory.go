package kvstore

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Memory is the in-process backend.  Its contents live only as long as the
// process and are never authoritative.
type Memory struct {
	mu     sync.Mutex
	data   map[string]string
	expiry map[string]time.Time
	now    func() time.Time
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		data:   map[string]string{},
		expiry: map[string]time.Time{},
		now:    time.Now,
	}
}

// purge drops key if its expiry has passed.  Caller holds mu.
func (m *Memory) purge(key string) {
	if exp, ok := m.expiry[key]; ok && !m.now().Before(exp) {
		delete(m.expiry, key)
		delete(m.data, key)
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	v, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

// Set stores value without expiry, clearing any previous one.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	delete(m.expiry, key)
	return nil
}

func (m *Memory) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.expiry[key] = m.now().Add(ttl)
	return nil
}

func (m *Memory) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		m.purge(k)
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// IncrWithExpiry treats a non-integer value as zero.  An existing expiry is
// kept.
func (m *Memory) IncrWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	if _, ok := m.expiry[key]; !ok {
		m.expiry[key] = m.now().Add(ttl)
	}
	return n, nil
}

func (m *Memory) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		m.purge(k)
		if _, ok := m.data[k]; !ok {
			continue
		}
		if globMatch(pattern, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// globMatch matches s against a Redis-style glob.  Unlike path.Match, '*'
// also spans '/', and a malformed class matches literally instead of
// failing.
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]
			pattern = pattern[1:]
		case '[':
			end := strings.IndexByte(pattern[1:], ']')
			if end < 0 {
				if len(s) == 0 || s[0] != '[' {
					return false
				}
				s = s[1:]
				pattern = pattern[1:]
				continue
			}
			if len(s) == 0 || !classMatch(pattern[1:1+end], s[0]) {
				return false
			}
			s = s[1:]
			pattern = pattern[end+2:]
		case '\\':
			if len(pattern) > 1 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || s[0] != pattern[0] {
				return false
			}
			s = s[1:]
			pattern = pattern[1:]
		}
	}
	return len(s) == 0
}

func classMatch(class string, c byte) bool {
	negate := len(class) > 0 && class[0] == '^'
	if negate {
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		lo := class[i]
		if i+2 < len(class) && class[i+1] == '-' {
			hi := class[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			i += 2
			continue
		}
		if lo == c {
			matched = true
		}
	}
	return matched != negate
}
