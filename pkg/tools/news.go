package tools

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"
)

const maxHeadlines = 5

type newsTool struct {
	ctx Context
}

// Headline is one NewsAPI article.
type Headline struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

type newsResult struct {
	Query     string     `json:"query"`
	Headlines []Headline `json:"headlines"`
	Text      string     `json:"text"`
}

func (t *newsTool) name() string {
	return NewsToolName
}

func (t *newsTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name: NewsToolName,
			Description: openai.String("Fetch the top news headlines for a keyword, topic or person. " +
				"Always include the returned URLs in the answer."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Keyword, topic or person to look up.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (t *newsTool) execute(argText string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(argText, &args); err != nil {
		t.ctx.debugf("[verbose] news: failed to parse arguments: %v", err)
		return marshalToolResponse(NewsToolName, nil, err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return marshalToolResponse(NewsToolName, nil, errors.New("query is required"))
	}
	t.ctx.debugf("[verbose] news: query=%q", query)

	headlines, err := t.fetch(query)
	if err != nil {
		t.ctx.Logger.Warn("news lookup failed", map[string]any{"query": query, "error": err.Error()})
		return marshalToolResponse(NewsToolName, nil, fmt.Errorf("an error occurred while fetching news: %w", err))
	}
	return marshalToolResponse(NewsToolName, newsResult{
		Query:     query,
		Headlines: headlines,
		Text:      formatHeadlines(query, headlines),
	}, nil)
}

func (t *newsTool) fetch(query string) ([]Headline, error) {
	params := url.Values{}
	params.Set("q", query)
	if t.ctx.News.Language != "" {
		params.Set("language", t.ctx.News.Language)
	}
	if t.ctx.News.Country != "" {
		params.Set("country", t.ctx.News.Country)
	}
	endpoint := strings.TrimRight(t.ctx.News.BaseURL, "/") + "/v2/top-headlines?" + params.Encode()

	req, err := http.NewRequestWithContext(t.ctx.requestContext(), http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", t.ctx.News.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.ctx.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("unexpected response (status %d)", resp.StatusCode)
	}

	parsed := gjson.ParseBytes(body)
	if resp.StatusCode/100 != 2 || parsed.Get("status").String() == "error" {
		msg := parsed.Get("message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("newsapi status %d: %s", resp.StatusCode, msg)
	}

	headlines := []Headline{}
	for _, a := range parsed.Get("articles").Array() {
		if len(headlines) == maxHeadlines {
			break
		}
		h := Headline{
			Title:  a.Get("title").String(),
			URL:    a.Get("url").String(),
			Source: a.Get("source.name").String(),
		}
		if h.Title == "" {
			h.Title = "No Title"
		}
		if h.URL == "" {
			h.URL = "#"
		}
		headlines = append(headlines, h)
	}
	return headlines, nil
}

func formatHeadlines(query string, headlines []Headline) string {
	if len(headlines) == 0 {
		return fmt.Sprintf("No news articles found for '%s'.", query)
	}
	var sb strings.Builder
	sb.WriteString("Here are the top headlines:\n")
	for i, h := range headlines {
		fmt.Fprintf(&sb, "%d. %s\nURL: %s\n\n", i+1, h.Title, h.URL)
	}
	return sb.String()
}
