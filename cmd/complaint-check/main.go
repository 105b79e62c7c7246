package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/mikey/complaint-router/internal/config"
	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/exclusions"
	"github.com/mikey/complaint-router/internal/factory"
	"github.com/mikey/complaint-router/internal/keywords"
	"github.com/mikey/complaint-router/internal/logging"
	"github.com/mikey/complaint-router/internal/utils"
	"go.uber.org/zap"
)

var (
	// Keyword file flags
	complaintFile = flag.String("complaint-keywords", "complaint_keywords.txt", "Complaint keyword file")
	subjectFile   = flag.String("subject-keywords", "subject_keywords.txt", "Subject keyword file")
	urgencyFile   = flag.String("urgency-keywords", "urgency_keywords.txt", "Urgency keyword file")
	negationFile  = flag.String("negation-keywords", "negation_keywords.txt", "Negation keyword file")

	// Scoring flags
	keywordThreshold   = flag.Float64("threshold", 0.6, "Keyword confidence threshold for complaints")
	sentimentThreshold = flag.Float64("sentiment-threshold", 0.75, "Negative sentiment score threshold")
	sentimentMode      = flag.String("sentiment-mode", "gate", "How sentiment combines with keywords (gate, additive)")
	contextual         = flag.Bool("contextual", true, "Enable contextual negation checks")
	proximity          = flag.Int("proximity", 3, "Negation window in tokens")

	// Sentiment backend flags
	provider        = flag.String("provider", "none", "Sentiment provider (none, bedrock, gemini, openai)")
	bedrockRegion   = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID  = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Exclusion flags
	excludeFrom    = flag.String("exclude-from", "", "Comma-separated sender exclusion patterns")
	excludeSubject = flag.String("exclude-subject", "", "Comma-separated subject exclusion patterns")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	textProcessor := utils.NewTextProcessor(logger)

	// Load keyword files
	keywordStore, err := keywords.NewStore(keywords.Sources{
		Complaint: cfg.GetString("keywords.complaint_file"),
		Subject:   cfg.GetString("keywords.subject_file"),
		Urgency:   cfg.GetString("keywords.urgency_file"),
		Negation:  cfg.GetString("keywords.negation_file"),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to load keywords", zap.Error(err))
	}

	// Compile exclusion patterns
	excluder, err := exclusions.NewChecker(
		cfg.GetStringSlice("exclusions.from"),
		cfg.GetStringSlice("exclusions.subject"),
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to compile exclusion patterns", zap.Error(err))
	}

	// Initialize the sentiment backend, if any
	sentimentClient, err := factory.NewSentimentFactory(cfg, logger, textProcessor).CreateAnalyzer()
	if err != nil {
		logger.Fatal("Failed to create sentiment analyzer", zap.Error(err))
	}

	engine := core.NewEngine(keywordStore, excluder, sentimentClient, nil,
		textProcessor, cfg.GetScoringWeights(), logger)

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := msg.Header.Get("From")
	to := msg.Header.Get("To")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}
	body := string(bodyBytes)

	message := &core.Message{
		ID:         msg.Header.Get("Message-Id"),
		From:       from,
		To:         strings.Split(to, ","),
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now(),
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("To: %s\n", to)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Sentiment provider: %s\n", cfg.GetString("sentiment.provider"))
	fmt.Printf("Keyword threshold: %.2f\n", cfg.GetFloat64("scoring.keyword_threshold"))

	startTime := time.Now()
	result, err := engine.Classify(context.Background(), message)
	if err != nil {
		logger.Fatal("Failed to classify email", zap.Error(err))
	}
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Is complaint: %t\n", result.IsComplaint)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	if result.Breakdown.ExcludedBy != "" {
		fmt.Printf("Excluded by: %s\n", result.Breakdown.ExcludedBy)
	}
	fmt.Printf("Keyword confidence: %.4f\n", result.Breakdown.KeywordConfidence)
	fmt.Printf("Complaint keywords: %s\n", strings.Join(result.FiredTerms(), ", "))
	fmt.Printf("Subject keywords: %s\n", strings.Join(result.Breakdown.SubjectHits, ", "))
	fmt.Printf("Urgency keywords: %s\n", strings.Join(result.Breakdown.UrgencyHits, ", "))
	fmt.Printf("Negations nearby: %d\n", result.Breakdown.NegationCount)
	if result.Breakdown.Sentiment != nil {
		fmt.Printf("Sentiment: %s (%.4f, model %s)\n",
			result.Breakdown.Sentiment.Label,
			result.Breakdown.Sentiment.Score,
			result.Breakdown.Sentiment.ModelUsed)
	}
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := sentimentClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close sentiment client", zap.Error(err))
		}
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("keywords.complaint_file", *complaintFile)
	v.Set("keywords.subject_file", *subjectFile)
	v.Set("keywords.urgency_file", *urgencyFile)
	v.Set("keywords.negation_file", *negationFile)

	v.Set("scoring.keyword_threshold", *keywordThreshold)
	v.Set("scoring.sentiment_threshold", *sentimentThreshold)
	v.Set("scoring.sentiment_mode", *sentimentMode)
	v.Set("scoring.contextual.enabled", *contextual)
	v.Set("scoring.contextual.negation_proximity", *proximity)

	// Set sentiment provider and its backend configuration
	v.Set("sentiment.provider", *provider)
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
	}

	if *excludeFrom != "" {
		v.Set("exclusions.from", splitPatterns(*excludeFrom))
	}
	if *excludeSubject != "" {
		v.Set("exclusions.subject", splitPatterns(*excludeSubject))
	}

	return config.NewFromViper(v)
}

func splitPatterns(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
