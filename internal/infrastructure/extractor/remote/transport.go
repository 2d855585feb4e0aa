package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
)

func (c *Client) postFile(ctx context.Context, path, filename string, raw []byte, normalize bool, operation string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build %s form: %w", operation, err)
	}
	if _, err := part.Write(raw); err != nil {
		return "", fmt.Errorf("build %s form: %w", operation, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build %s form: %w", operation, err)
	}

	url := c.baseURL + path + "?normalization=" + strconv.FormatBool(normalize)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extractor %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(operation, resp)
	}

	var response struct {
		Data struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode %s response: %w", operation, err)
	}
	return response.Data.Text, nil
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	message := ""
	if json.Unmarshal(body, &envelope) == nil {
		message = envelope.Error.Message
	}
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       message,
	}
}
