package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Nightly recompute of derived scholar metrics
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Similarity oracle (Meilisearch)
	MeiliURL    string `envconfig:"MEILI_URL" default:"http://127.0.0.1:7700"`
	MeiliAPIKey string `envconfig:"MEILI_API_KEY"`

	// Publikationsarchiv (S3)
	ArchiveS3Key      string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret   string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL      string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region   string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Bucket   string `envconfig:"ARCHIVE_S3_BUCKET"`
	ArchiveS3Disabled bool   `envconfig:"ARCHIVE_S3_DISABLED" default:"false"`

	Policy Policy
}

// Policy bündelt alle Stellschrauben der Publishing-Pipeline.
// Wird als Wert an Screening und Decision Engine übergeben, nie global gelesen.
type Policy struct {
	MinReviewsNormal     int     `envconfig:"POLICY_MIN_REVIEWS_NORMAL" default:"2"`
	MinReviewsHighImpact int     `envconfig:"POLICY_MIN_REVIEWS_HIGH_IMPACT" default:"3"`
	HighImpactDomainsCSV string  `envconfig:"POLICY_HIGH_IMPACT_DOMAINS" default:"ai-theory,ai-safety,cryptography"`
	AcceptScoreThreshold float64 `envconfig:"POLICY_ACCEPT_SCORE_THRESHOLD" default:"6.0"`
	MaxRevisionRounds    int     `envconfig:"POLICY_MAX_REVISION_ROUNDS" default:"3"`
	MinAbstractLength    int     `envconfig:"POLICY_MIN_ABSTRACT_LENGTH" default:"50"`
	MinContentLength     int     `envconfig:"POLICY_MIN_CONTENT_LENGTH" default:"200"`

	// Integrity
	PlagiarismSimilarityThreshold float64 `envconfig:"POLICY_PLAGIARISM_THRESHOLD" default:"0.92"`
	CitationRingThreshold         int     `envconfig:"POLICY_CITATION_RING_THRESHOLD" default:"5"`
	SybilVelocityWindowHours      int     `envconfig:"POLICY_SYBIL_WINDOW_HOURS" default:"1"`
	SybilMaxSubmissions           int     `envconfig:"POLICY_SYBIL_MAX_SUBMISSIONS" default:"10"`
}

// HighImpactDomains liefert die Domains mit erhöhter Review-Pflicht.
func (p Policy) HighImpactDomains() []string {
	parts := strings.Split(p.HighImpactDomainsCSV, ",")
	out := make([]string, 0, len(parts))
	for _, d := range parts {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// MinReviews liefert die Mindestanzahl an Reviews für eine Domain.
func (p Policy) MinReviews(domain string) int {
	for _, d := range p.HighImpactDomains() {
		if d == domain {
			return p.MinReviewsHighImpact
		}
	}
	return p.MinReviewsNormal
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

// DefaultPolicy liefert die Policy mit allen Default-Werten (für Tests).
func DefaultPolicy() Policy {
	return Policy{
		MinReviewsNormal:              2,
		MinReviewsHighImpact:          3,
		HighImpactDomainsCSV:          "ai-theory,ai-safety,cryptography",
		AcceptScoreThreshold:          6.0,
		MaxRevisionRounds:             3,
		MinAbstractLength:             50,
		MinContentLength:              200,
		PlagiarismSimilarityThreshold: 0.92,
		CitationRingThreshold:         5,
		SybilVelocityWindowHours:      1,
		SybilMaxSubmissions:           10,
	}
}
