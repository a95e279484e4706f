// Package catalog is a typed client for the external game-content catalog
// service: the read-only source of game definitions, question groups, and
// questions that the game-state service draws on when starting rounds
// (component C). It never owns game state itself.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/metrics"
	"github.com/sony/gobreaker"
)

// Game mirrors the catalog service's GameOut representation.
type Game struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	Enabled         bool   `json:"enabled"`
	RulesURL        string `json:"rules_url"`
	MinimumPlayers  int    `json:"minimum_players"`
	MaximumPlayers  int    `json:"maximum_players"`
}

// QuestionGroups mirrors the catalog service's QuestionGroups representation.
type QuestionGroups struct {
	Groups []string `json:"groups"`
}

// Question mirrors the catalog service's QuestionSimpleOut representation.
type Question struct {
	QuestionID string `json:"question_id"`
	Content    string `json:"content"`
	Type       string `json:"type"`
}

// Client fetches game content from the catalog service over HTTP, wrapped
// in a circuit breaker so an unreachable catalog degrades into a clear
// gameerrors.CatalogUnavailable rather than hanging the room.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

// NewClient builds a catalog client against baseURL (e.g.
// "http://banter-bus-management-api:8080").
func NewClient(baseURL string) *Client {
	st := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("catalog").Set(stateVal)
		},
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// GetGame fetches a single game's definition by name.
func (c *Client) GetGame(ctx context.Context, gameName string) (Game, error) {
	var game Game
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/game/%s", url.PathEscape(gameName)), nil, &game)
	return game, err
}

// GetRandomGroups fetches up to limit random question groups for a round.
func (c *Client) GetRandomGroups(ctx context.Context, gameName, round string, limit int) (QuestionGroups, error) {
	var groups QuestionGroups
	path := fmt.Sprintf("/game/%s/question/group:random?round=%s&limit=%s",
		url.PathEscape(gameName), url.QueryEscape(round), strconv.Itoa(limit))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &groups)
	return groups, err
}

// GetRandomQuestions fetches up to limit random questions for a round,
// optionally scoped to a single question group.
func (c *Client) GetRandomQuestions(ctx context.Context, gameName, round, groupName string, limit int) ([]Question, error) {
	q := url.Values{}
	q.Set("round", round)
	q.Set("limit", strconv.Itoa(limit))
	if groupName != "" {
		q.Set("group_name", groupName)
	}

	var questions []Question
	path := fmt.Sprintf("/game/%s/question:random?%s", url.PathEscape(gameName), q.Encode())
	err := c.doJSON(ctx, http.MethodGet, path, nil, &questions)
	return questions, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		var reqBody io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal catalog request body: %w", err)
			}
			reqBody = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to build catalog request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, gameerrors.GameNotFound(path)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("catalog returned status %d for %s", resp.StatusCode, path)
		}

		if out == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode catalog response: %w", err)
		}
		return nil, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("catalog").Inc()
			return gameerrors.CatalogUnavailable(err)
		}
		var coded gameerrors.Coded
		if isCoded(err, &coded) {
			return err
		}
		return gameerrors.CatalogUnavailable(err)
	}
	return nil
}

func isCoded(err error, target *gameerrors.Coded) bool {
	c, ok := err.(gameerrors.Coded)
	if ok {
		*target = c
	}
	return ok
}
