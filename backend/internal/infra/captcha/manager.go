package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCaptchaNotFound = errors.New("captcha not found or expired")
	ErrCaptchaMismatch = errors.New("captcha code mismatch")
	ErrRateLimited     = errors.New("captcha requests too frequent")
)

// Generator 负责生成验证码图像。
type Generator interface {
	Generate(ctx context.Context, ip string) (id string, b64 string, err error)
}

// Verifier 负责校验用户提交的验证码答案。
type Verifier interface {
	Verify(ctx context.Context, id string, answer string) error
}

// AnswerStore 抽象验证码答案的存取，线上走 Redis，本地模式走内存。
type AnswerStore interface {
	// SaveAnswer 缓存答案并设置过期时间。
	SaveAnswer(ctx context.Context, id, answer string, ttl time.Duration) error
	// TakeAnswer 取出并删除答案，一次校验后即失效。
	TakeAnswer(ctx context.Context, id string) (string, error)
	// Hit 递增 IP 计数并返回窗口内的累计次数。
	Hit(ctx context.Context, ip string, window time.Duration) (int64, error)
}

// Manager 封装验证码生成、答案存储以及按 IP 限流。
type Manager struct {
	store   AnswerStore
	driver  base64Captcha.Driver
	ttl     time.Duration
	maxHits int64
	window  time.Duration
}

// Options 聚合验证码图像参数与限流设置。
type Options struct {
	TTL             time.Duration
	Width           int
	Height          int
	Length          int
	MaxSkew         float64
	DotCount        int
	RateLimitPerMin int
	RateLimitWindow time.Duration
}

const (
	defaultTTL     = 5 * time.Minute
	defaultWidth   = 240
	defaultHeight  = 80
	defaultLength  = 5
	defaultMaxSkew = 0.7
	defaultDot     = 80
)

// NewManager 根据给定选项构造验证码管理器。
func NewManager(store AnswerStore, opts Options) *Manager {
	if store == nil {
		panic("captcha manager requires answer store")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}

	height := opts.Height
	if height <= 0 {
		height = defaultHeight
	}

	length := opts.Length
	if length <= 0 {
		length = defaultLength
	}

	maxSkew := opts.MaxSkew
	if maxSkew <= 0 {
		maxSkew = defaultMaxSkew
	}

	dotCount := opts.DotCount
	if dotCount <= 0 {
		dotCount = defaultDot
	}

	maxHits := opts.RateLimitPerMin
	if maxHits < 0 {
		maxHits = 0
	}

	window := opts.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	// 目前采用纯数字验证码，后续可替换 Driver 引入图形题。
	driver := base64Captcha.NewDriverDigit(height, width, length, maxSkew, dotCount)

	return &Manager{
		store:   store,
		driver:  driver,
		ttl:     ttl,
		maxHits: int64(maxHits),
		window:  window,
	}
}

// Generate 输出 base64 图像和对应的验证码 ID，并缓存答案。
func (m *Manager) Generate(ctx context.Context, ip string) (string, string, error) {
	if err := m.checkRateLimit(ctx, ip); err != nil {
		return "", "", err
	}

	id, content, answer := m.driver.GenerateIdQuestionAnswer()

	item, err := m.driver.DrawCaptcha(content)
	if err != nil {
		return "", "", fmt.Errorf("draw captcha: %w", err)
	}

	if err := m.store.SaveAnswer(ctx, id, strings.ToLower(answer), m.ttl); err != nil {
		return "", "", fmt.Errorf("store captcha: %w", err)
	}

	return id, item.EncodeB64string(), nil
}

// Verify 对比用户提交的验证码答案，答案取出即删除。
func (m *Manager) Verify(ctx context.Context, id string, answer string) error {
	if strings.TrimSpace(id) == "" {
		return ErrCaptchaNotFound
	}

	stored, err := m.store.TakeAnswer(ctx, id)
	if err != nil {
		return err
	}

	if !strings.EqualFold(strings.TrimSpace(answer), stored) {
		return ErrCaptchaMismatch
	}

	return nil
}

// checkRateLimit 维护单个 IP 的访问频次，超过阈值返回 ErrRateLimited。
func (m *Manager) checkRateLimit(ctx context.Context, ip string) error {
	if m.maxHits <= 0 || strings.TrimSpace(ip) == "" {
		return nil
	}

	count, err := m.store.Hit(ctx, ip, m.window)
	if err != nil {
		return fmt.Errorf("captcha rate limit: %w", err)
	}
	if count > m.maxHits {
		return ErrRateLimited
	}
	return nil
}

// RedisAnswerStore 基于 Redis 的答案存储，支持多实例共享。
type RedisAnswerStore struct {
	client *redis.Client
	prefix string
}

// NewRedisAnswerStore 创建 Redis 答案存储，prefix 为空时使用默认前缀。
func NewRedisAnswerStore(client *redis.Client, prefix string) *RedisAnswerStore {
	if prefix == "" {
		prefix = "captcha"
	}
	return &RedisAnswerStore{client: client, prefix: prefix}
}

func (s *RedisAnswerStore) SaveAnswer(ctx context.Context, id, answer string, ttl time.Duration) error {
	return s.client.Set(ctx, fmt.Sprintf("%s:%s", s.prefix, id), answer, ttl).Err()
}

func (s *RedisAnswerStore) TakeAnswer(ctx context.Context, id string) (string, error) {
	key := fmt.Sprintf("%s:%s", s.prefix, id)
	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCaptchaNotFound
		}
		return "", fmt.Errorf("get captcha: %w", err)
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return "", fmt.Errorf("delete captcha: %w", err)
	}
	return stored, nil
}

func (s *RedisAnswerStore) Hit(ctx context.Context, ip string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s:rl:%s", s.prefix, ip)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// MemoryAnswerStore 进程内答案存储，仅用于本地模式或测试。
type MemoryAnswerStore struct {
	mu      sync.Mutex
	answers map[string]memoryAnswer
	hits    map[string]memoryHit
}

type memoryAnswer struct {
	value     string
	expiresAt time.Time
}

type memoryHit struct {
	count    int64
	windowAt time.Time
}

// NewMemoryAnswerStore 创建内存答案存储。
func NewMemoryAnswerStore() *MemoryAnswerStore {
	return &MemoryAnswerStore{
		answers: make(map[string]memoryAnswer),
		hits:    make(map[string]memoryHit),
	}
}

func (s *MemoryAnswerStore) SaveAnswer(ctx context.Context, id, answer string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers[id] = memoryAnswer{value: answer, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryAnswerStore) TakeAnswer(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.answers[id]
	if !ok {
		return "", ErrCaptchaNotFound
	}
	delete(s.answers, id)

	if time.Now().After(entry.expiresAt) {
		return "", ErrCaptchaNotFound
	}
	return entry.value, nil
}

func (s *MemoryAnswerStore) Hit(ctx context.Context, ip string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.hits[ip]
	if !ok || now.After(entry.windowAt) {
		entry = memoryHit{count: 0, windowAt: now.Add(window)}
	}
	entry.count++
	s.hits[ip] = entry
	return entry.count, nil
}
