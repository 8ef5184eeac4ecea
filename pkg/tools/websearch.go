package tools

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"
)

const maxSearchResults = 20

type webSearchTool struct {
	ctx Context
}

// SearchHit is one Tavily search result.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResult struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer,omitempty"`
	Results []SearchHit `json:"results"`
}

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

func (t *webSearchTool) name() string {
	return WebSearchToolName
}

func (t *webSearchTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name: WebSearchToolName,
			Description: openai.String("Search the web for current, up-to-date information like weather, " +
				"sports scores, or news."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query.",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results to return.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (t *webSearchTool) execute(argText string) (string, error) {
	var args struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := decodeArgs(argText, &args); err != nil {
		t.ctx.debugf("[verbose] web_search: failed to parse arguments: %v", err)
		return marshalToolResponse(WebSearchToolName, nil, err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return marshalToolResponse(WebSearchToolName, nil, errors.New("query is required"))
	}
	limit := args.MaxResults
	if limit <= 0 {
		limit = t.ctx.Search.MaxResults
	}
	if limit <= 0 {
		limit = 2
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	t.ctx.debugf("[verbose] web_search: query=%q, max_results=%d", query, limit)

	res, err := t.search(query, limit)
	if err != nil {
		t.ctx.Logger.Warn("web search failed", map[string]any{"query": query, "error": err.Error()})
		return marshalToolResponse(WebSearchToolName, nil, err)
	}
	return marshalToolResponse(WebSearchToolName, res, nil)
}

func (t *webSearchTool) search(query string, limit int) (searchResult, error) {
	payload, err := json.Marshal(tavilyRequest{
		Query:         query,
		MaxResults:    limit,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	})
	if err != nil {
		return searchResult{}, fmt.Errorf("encode search request: %w", err)
	}

	endpoint := strings.TrimRight(t.ctx.Search.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(t.ctx.requestContext(), http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return searchResult{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.ctx.Search.APIKey)

	resp, err := t.ctx.HTTPClient.Do(req)
	if err != nil {
		return searchResult{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp.Body)
	if err != nil {
		return searchResult{}, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(body))
		if gjson.ValidBytes(body) {
			for _, path := range []string{"detail.error", "detail", "error", "message"} {
				if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
					msg = v.String()
					break
				}
			}
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return searchResult{}, fmt.Errorf("tavily status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return searchResult{}, errors.New("tavily returned invalid JSON")
	}

	parsed := gjson.ParseBytes(body)
	out := searchResult{
		Query:   query,
		Answer:  parsed.Get("answer").String(),
		Results: []SearchHit{},
	}
	for _, r := range parsed.Get("results").Array() {
		if len(out.Results) == limit {
			break
		}
		out.Results = append(out.Results, SearchHit{
			Title:   r.Get("title").String(),
			URL:     r.Get("url").String(),
			Content: r.Get("content").String(),
			Score:   r.Get("score").Float(),
		})
	}
	return out, nil
}
