package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		AppName  string
		WorkDir  string

		SecretKey []byte
		BaseURL   string // public base URL used to build emailed links

		DefaultFromEmail mail.Address
		AdminEmail       string
		SendgridApiKey   string
		RollbarToken     string

		// admin console credentials; the password is a bcrypt hash
		AdminUsername     string
		AdminPasswordHash []byte

		Server   ServerConfig
		Database DatabaseConfig
		Reminder ReminderConfig
		Upload   UploadConfig
	}

	ServerConfig struct {
		Host               string
		Addr               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	ReminderConfig struct {
		// Interval is the minimum time between two reminders of the same
		// kind to the same person.
		Interval time.Duration
		// MaxReminders caps every kind except the final notice.
		MaxReminders int
		// MaxErrors bounds the per-person error list in a run result.
		MaxErrors int
		// CronSpec schedules the daily engine pass.
		CronSpec string
	}

	UploadConfig struct {
		Dir         string
		MaxSize     int64
		AllowedExts []string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Mafunzo")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "w3lp-qor)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("baseUrl", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("adminEmail", "admin@localhost")
	v.SetDefault("adminUsername", "admin")
	v.SetDefault("adminPasswordHash", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 24*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseUser", "mafunzo")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseName", "mafunzo")
	v.SetDefault("databaseDisableTls", true)

	v.SetDefault("reminderInterval", 7*24*time.Hour)
	v.SetDefault("maxReminders", 4)
	v.SetDefault("maxReminderErrors", 20)
	v.SetDefault("reminderCronSpec", "0 8 * * *")

	v.SetDefault("uploadDir", "uploads")
	v.SetDefault("uploadMaxSize", int64(16<<20))
	v.SetDefault("uploadAllowedExts", []string{"pdf", "doc", "docx", "xls", "xlsx", "jpg", "jpeg", "png", "txt"})

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:             v.GetBool("debug"),
		TestMode:          env == "TEST",
		Env:               env,
		Build:             v.GetString("build"),
		AppName:           v.GetString("appName"),
		WorkDir:           wd,
		SecretKey:         []byte(v.GetString("secretKey")),
		BaseURL:           strings.TrimRight(v.GetString("baseUrl"), "/"),
		DefaultFromEmail:  mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		AdminEmail:        v.GetString("adminEmail"),
		SendgridApiKey:    v.GetString("sendgridApiKey"),
		RollbarToken:      v.GetString("rollbarToken"),
		AdminUsername:     v.GetString("adminUsername"),
		AdminPasswordHash: []byte(v.GetString("adminPasswordHash")),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Addr:               v.GetString("serverAddr"),
			DebugHost:          v.GetString("serverDebugHost"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Name:          v.GetString("databaseName"),
			DisableTLS:    v.GetBool("databaseDisableTls"),
		},
		Reminder: ReminderConfig{
			Interval:     v.GetDuration("reminderInterval"),
			MaxReminders: v.GetInt("maxReminders"),
			MaxErrors:    v.GetInt("maxReminderErrors"),
			CronSpec:     v.GetString("reminderCronSpec"),
		},
		Upload: UploadConfig{
			Dir:         v.GetString("uploadDir"),
			MaxSize:     v.GetInt64("uploadMaxSize"),
			AllowedExts: v.GetStringSlice("uploadAllowedExts"),
		},
	}
	if conf.TestMode {
		conf.Debug = true
	}
	return conf
}
