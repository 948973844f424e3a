package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lunar-stra95/coach-coral-mistral/internal/agent"
	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/config"
	"github.com/lunar-stra95/coach-coral-mistral/internal/interview"
	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
	"github.com/lunar-stra95/coach-coral-mistral/internal/metrics"
	"github.com/lunar-stra95/coach-coral-mistral/internal/monitor"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
)

// core is everything both serve and analyze need.
type core struct {
	cfg      *config.Config
	store    *session.Store
	bank     *questions.Bank
	master   *agent.Master
	coach    *interview.Coach
	provider llm.Provider
	privacy  *session.PrivacyFilter
	health   *monitor.AnalyzerHealth
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &UserError{
			Message:    "failed to load config",
			Cause:      err,
			Suggestion: "check " + configPath + " or pass --config",
		}
	}
	return cfg, nil
}

func loadBank(cfg *config.Config) (*questions.Bank, error) {
	if cfg.Questions.File == "" {
		return questions.DefaultBank(), nil
	}
	bank, err := questions.LoadBank(cfg.Questions.File)
	if err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}
	log.Printf("Loaded %d questions from %s", bank.Len(), cfg.Questions.File)
	return bank, nil
}

// buildCore wires the provider, analyzer, agents and coach. rec may be nil.
func buildCore(ctx context.Context, cfg *config.Config, mock bool, rec *metrics.Recorder) (*core, error) {
	bank, err := loadBank(cfg)
	if err != nil {
		return nil, err
	}

	builder := cfg.ProviderBuilder()
	if mock {
		builder = llm.NewProviderBuilder(llm.ProviderMock)
	}
	provider, err := builder.FromEnv(ctx)
	if err != nil {
		return nil, providerError(err)
	}
	log.Printf("Using %s provider (model %s)", provider.Name(), provider.Model())

	privacy := &session.PrivacyFilter{
		RedactContactInfo:  cfg.Privacy.RedactContactInfo,
		MaskCandidateNames: cfg.Privacy.MaskCandidateNames,
		MaskSessionIDs:     cfg.Privacy.MaskSessionIDs,
	}

	tokens, err := analysis.NewTokenBudget()
	if err != nil {
		log.Printf("Token budget disabled: %v", err)
	}

	opts := analysis.Options{
		RetryDelay:      cfg.LLM.RetryDelay,
		Timeout:         cfg.LLM.Timeout,
		MaxAnswerTokens: cfg.LLM.MaxAnswerTokens,
		Redactor:        privacy,
		Tokens:          tokens,
	}
	if rec != nil {
		provider = llm.Instrument(provider, rec)
		opts.Recorder = rec
	}
	analyzer := analysis.NewAnalyzer(provider, opts)

	master := agent.NewMaster(256)
	master.SetLogFilter(privacy)
	master.Register(agent.NewInterviewer(questions.NewSelector(bank, time.Now().UnixNano())))
	master.Register(agent.NewAnalyzer(analyzer))

	store := session.NewStore()
	coach := interview.New(interview.Config{
		MaxQuestions:     cfg.Interview.MaxQuestions,
		StartDifficulty:  cfg.StartDifficulty(),
		PromoteThreshold: cfg.Interview.PromoteThreshold,
		DemoteThreshold:  cfg.Interview.DemoteThreshold,
		SessionTTL:       cfg.Interview.SessionTTL,
		SweepInterval:    cfg.Interview.SweepInterval,
		MaxAnswerChars:   cfg.Interview.MaxAnswerChars,
	}, store, master, bank)
	if rec != nil {
		coach.SetRecorder(rec)
	}

	health := monitor.NewAnalyzerHealth(provider.Name(), provider.Model(), cfg.Health.FailureThreshold)
	coach.SetAnalysisObserver(health)

	return &core{
		cfg:      cfg,
		store:    store,
		bank:     bank,
		master:   master,
		coach:    coach,
		provider: provider,
		privacy:  privacy,
		health:   health,
	}, nil
}
