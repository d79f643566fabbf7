// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
	"strings"
)

// Topic labels a category of request the agent refuses to plan for.
type Topic string

const (
	TopicDangerous Topic = "dangerous"
	TopicSelfHarm  Topic = "self_harm"
	TopicIllegal   Topic = "illegal"
	TopicMalware   Topic = "malware"
	TopicPhishing  Topic = "phishing"
	TopicMedical   Topic = "medical_advice"
	TopicFinancial Topic = "financial_advice"
)

type topicRules struct {
	patterns []*regexp.Regexp
	keywords []string
}

// TopicScreen refuses requests matching denied topic patterns or keywords.
// Pattern matching is conservative and English-focused; deployments needing
// higher recall should layer an ML classifier in front.
type TopicScreen struct {
	topics   map[Topic]topicRules
	flagOnly bool
}

// TopicOption configures the topic screen.
type TopicOption func(*TopicScreen)

var defaultTopicRules = map[Topic]struct {
	patterns []string
	keywords []string
}{
	TopicDangerous: {
		patterns: []string{
			`(?i)how\s+to\s+(make|build|create)\s+(a\s+)?(bomb|explosive|weapon)`,
			`(?i)instructions?\s+(for|to)\s+(making|building)\s+(bombs?|explosives?|weapons?)`,
			`(?i)synthesize\s+(drugs?|chemicals?)`,
		},
		keywords: []string{"ricin", "sarin", "anthrax", "weaponize"},
	},
	TopicSelfHarm: {
		patterns: []string{
			`(?i)how\s+to\s+(commit\s+)?suicide`,
			`(?i)best\s+way\s+to\s+(kill|harm)\s+(myself|yourself)`,
			`(?i)methods?\s+of\s+self[- ]?harm`,
		},
	},
	TopicIllegal: {
		patterns: []string{
			`(?i)how\s+to\s+hack\s+(into|someone)`,
			`(?i)how\s+to\s+(buy|sell)\s+(drugs|stolen)`,
			`(?i)bypass\s+(security|authentication)`,
			`(?i)crack\s+(password|software|license)`,
		},
	},
	TopicMalware: {
		patterns: []string{
			`(?i)write\s+(a\s+)?(virus|malware|ransomware|trojan)`,
			`(?i)create\s+(a\s+)?(keylogger|botnet|rootkit)`,
			`(?i)exploit\s+(code|vulnerability)`,
		},
		keywords: []string{"shellcode", "reverse shell", "payload injection"},
	},
	TopicPhishing: {
		patterns: []string{
			`(?i)create\s+(a\s+)?phishing\s+(page|email|site)`,
			`(?i)spoof\s+(email|website|identity)`,
		},
	},
	TopicMedical: {
		patterns: []string{
			`(?i)prescribe\s+me`,
			`(?i)what\s+medication\s+should\s+I\s+take`,
			`(?i)diagnose\s+(my|this)\s+(condition|symptoms?)`,
		},
	},
	TopicFinancial: {
		patterns: []string{
			`(?i)should\s+I\s+(buy|sell|invest)\s+`,
			`(?i)give\s+me\s+financial\s+advice`,
			`(?i)is\s+this\s+(stock|crypto)\s+a\s+good\s+(buy|investment)`,
		},
	},
}

// NewTopicScreen builds a screen for the listed topics.
func NewTopicScreen(topics ...Topic) *TopicScreen {
	s := &TopicScreen{topics: make(map[Topic]topicRules)}
	for _, topic := range topics {
		def, ok := defaultTopicRules[topic]
		if !ok {
			continue
		}
		rules := topicRules{keywords: def.keywords}
		for _, p := range def.patterns {
			if re, err := regexp.Compile(p); err == nil {
				rules.patterns = append(rules.patterns, re)
			}
		}
		s.topics[topic] = rules
	}
	return s
}

// WithAllTopics enables every default topic.
func WithAllTopics() TopicOption {
	return func(s *TopicScreen) {
		for topic := range defaultTopicRules {
			def := defaultTopicRules[topic]
			rules := topicRules{keywords: def.keywords}
			for _, p := range def.patterns {
				if re, err := regexp.Compile(p); err == nil {
					rules.patterns = append(rules.patterns, re)
				}
			}
			s.topics[topic] = rules
		}
	}
}

// WithTopicPattern adds a custom pattern to a topic.
func WithTopicPattern(topic Topic, pattern string) TopicOption {
	return func(s *TopicScreen) {
		if re, err := regexp.Compile(pattern); err == nil {
			rules := s.topics[topic]
			rules.patterns = append(rules.patterns, re)
			s.topics[topic] = rules
		}
	}
}

// WithTopicKeywords adds keywords to a topic.
func WithTopicKeywords(topic Topic, keywords ...string) TopicOption {
	return func(s *TopicScreen) {
		rules := s.topics[topic]
		rules.keywords = append(rules.keywords, keywords...)
		s.topics[topic] = rules
	}
}

// WithFlagOnly records violations without refusing the request.
func WithFlagOnly() TopicOption {
	return func(s *TopicScreen) {
		s.flagOnly = true
	}
}

func (s *TopicScreen) Name() string {
	return "topics"
}

// Screen checks the request against every enabled topic.
func (s *TopicScreen) Screen(ctx context.Context, text string) Verdict {
	if text == "" {
		return Verdict{Allowed: true}
	}

	normalized := strings.ToLower(text)

	for topic, rules := range s.topics {
		select {
		case <-ctx.Done():
			return Verdict{Allowed: true}
		default:
		}

		for _, pattern := range rules.patterns {
			if pattern.MatchString(normalized) {
				return Verdict{
					Allowed:    s.flagOnly,
					Reason:     "request topic not allowed: " + string(topic),
					Source:     s.Name(),
					Confidence: 0.9,
					Details: map[string]any{
						"topic": string(topic),
						"match": "pattern",
					},
				}
			}
		}
		for _, keyword := range rules.keywords {
			if strings.Contains(normalized, strings.ToLower(keyword)) {
				return Verdict{
					Allowed:    s.flagOnly,
					Reason:     "request topic not allowed: " + string(topic),
					Source:     s.Name(),
					Confidence: 0.8,
					Details: map[string]any{
						"topic":   string(topic),
						"match":   "keyword",
						"keyword": keyword,
					},
				}
			}
		}
	}

	return Verdict{Allowed: true}
}

// WithTopicScreen installs topic screening into the pipeline.
func WithTopicScreen(topics ...Topic) Option {
	return func(p *Pipeline) {
		p.screens = append(p.screens, NewTopicScreen(topics...))
	}
}

// WithTopicScreenOptions installs a topic screen with extra configuration.
func WithTopicScreenOptions(topics []Topic, opts ...TopicOption) Option {
	return func(p *Pipeline) {
		screen := NewTopicScreen(topics...)
		for _, opt := range opts {
			opt(screen)
		}
		p.screens = append(p.screens, screen)
	}
}
