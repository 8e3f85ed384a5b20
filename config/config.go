package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Store        StoreConfig        `mapstructure:"store"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Email        EmailConfig        `mapstructure:"email"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Profile      ProfileConfig      `mapstructure:"profile"`
	Pricing      PricingConfig      `mapstructure:"pricing"`
	Affiliate    AffiliateConfig    `mapstructure:"affiliate"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// StoreConfig 文档存储配置
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`     // redis, file
	KeyPrefix string `mapstructure:"key_prefix"` // redis 键前缀
	Root      string `mapstructure:"root"`       // file 驱动的数据目录
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type EmailConfig struct {
	SMTPHost   string        `mapstructure:"smtp_host"`
	SMTPPort   int           `mapstructure:"smtp_port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	From       string        `mapstructure:"from"`
	AdminEmail string        `mapstructure:"admin_email"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Async      bool          `mapstructure:"async"` // true 时邮件写入队列，由 worker 发送
}

type QueueConfig struct {
	MailQueue  string `mapstructure:"mail_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// PaymentConfig 银行转账对账配置
type PaymentConfig struct {
	WebhookSecret         string `mapstructure:"webhook_secret"`
	SecretHeader          string `mapstructure:"secret_header"`
	ReferencePrefix       string `mapstructure:"reference_prefix"`
	AmountTolerance       int64  `mapstructure:"amount_tolerance"`
	BankName              string `mapstructure:"bank_name"`
	AccountNumber         string `mapstructure:"account_number"`
	AccountName           string `mapstructure:"account_name"`
	DeliveryRetentionDays int    `mapstructure:"delivery_retention_days"` // 回调记录保留天数，0 为不清理
}

// ProfileConfig 用户资料目录服务
type ProfileConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PricingConfig 套餐价格，key 为月数
type PricingConfig struct {
	Bundle      map[int]int64 `mapstructure:"bundle"`
	SingleSkill map[int]int64 `mapstructure:"single_skill"`
}

type AffiliateConfig struct {
	CommissionRate string `mapstructure:"commission_rate"`
	CookieName     string `mapstructure:"cookie_name"`
	CookieDays     int    `mapstructure:"cookie_days"`
}

type AdminConfig struct {
	UserIDs []string `mapstructure:"user_ids"`
}

type SubscriptionConfig struct {
	Timezone string `mapstructure:"timezone"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("store.driver", "redis")
	viper.SetDefault("store.key_prefix", "ielts")
	viper.SetDefault("store.root", "data")
	viper.SetDefault("email.timeout", 8*time.Second)
	viper.SetDefault("queue.mail_queue", "mail_queue")
	viper.SetDefault("queue.max_workers", 2)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("payment.secret_header", "X-Webhook-Secret")
	viper.SetDefault("payment.reference_prefix", "IELTS PREDICTION")
	viper.SetDefault("payment.amount_tolerance", 1000)
	viper.SetDefault("payment.delivery_retention_days", 90)
	viper.SetDefault("profile.timeout", 8*time.Second)
	viper.SetDefault("affiliate.commission_rate", "0.20")
	viper.SetDefault("affiliate.cookie_name", "ref_code")
	viper.SetDefault("affiliate.cookie_days", 30)
	viper.SetDefault("subscription.timezone", "Asia/Ho_Chi_Minh")
}

// Location 返回业务时区，无法加载时退回 UTC
func (c SubscriptionConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Price 返回套餐价格
func (c PricingConfig) Price(packageKind string, months int) (int64, bool) {
	var table map[int]int64
	switch packageKind {
	case "bundle":
		table = c.Bundle
	case "single-skill":
		table = c.SingleSkill
	}
	price, ok := table[months]
	return price, ok && price > 0
}

// IsAdmin 判断用户是否为管理员
func (c AdminConfig) IsAdmin(userID string) bool {
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
