package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// tryEnvelope mirrors the API's response shape.
type tryEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// newTryCmd drives one full upload/process/status cycle against a running
// server, which is the quickest way to smoke-test the stack after `up`.
func newTryCmd() *cobra.Command {
	var serverURL string
	var pollTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "try <audio-file>",
		Short: "Upload a file, process it and print the download link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTry(cmd.Context(), serverURL, args[0], pollTimeout)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the running API server")
	cmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 30*time.Second, "How long to wait for async processing to finish")
	return cmd
}

func runTry(ctx context.Context, serverURL, path string, pollTimeout time.Duration) error {
	id, err := tryUpload(ctx, serverURL, path)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded: id=%s\n", id)

	status, downloadURL, err := tryProcess(ctx, serverURL, id)
	if err != nil {
		return err
	}
	// In async mode the process call only queues the job; poll status until
	// the worker settles it.
	if downloadURL == "" {
		fmt.Printf("queued: status=%s, polling\n", status)
		status, downloadURL, err = tryPoll(ctx, serverURL, id, pollTimeout)
		if err != nil {
			return err
		}
	}
	fmt.Printf("done: status=%s\n", status)
	if downloadURL != "" {
		fmt.Printf("download: %s\n", downloadURL)
	}
	return nil
}

func tryUpload(ctx context.Context, serverURL, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	// CreateFormFile hardcodes application/octet-stream, which the server's
	// MIME allow-list rejects, so build the part header by hand.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(path)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/audio/upload", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	env, _, err := tryDo(req)
	if err != nil {
		return "", err
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return res.ID, nil
}

func tryProcess(ctx context.Context, serverURL, id string) (status, downloadURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/audio/process/"+id, nil)
	if err != nil {
		return "", "", err
	}
	env, _, err := tryDo(req)
	if err != nil {
		return "", "", err
	}
	var res struct {
		Status      string `json:"status"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return "", "", fmt.Errorf("decode process response: %w", err)
	}
	return res.Status, res.DownloadURL, nil
}

func tryPoll(ctx context.Context, serverURL, id string, timeout time.Duration) (status, downloadURL string, err error) {
	deadline := time.Now().Add(timeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/api/audio/status/"+id, nil)
		if err != nil {
			return "", "", err
		}
		env, _, err := tryDo(req)
		if err != nil {
			return "", "", err
		}
		var res struct {
			Status      string  `json:"status"`
			DownloadURL *string `json:"download_url"`
		}
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return "", "", fmt.Errorf("decode status response: %w", err)
		}
		switch res.Status {
		case "processed":
			url := ""
			if res.DownloadURL != nil {
				url = *res.DownloadURL
			}
			return res.Status, url, nil
		case "failed":
			return res.Status, "", fmt.Errorf("processing failed for %s", id)
		}
		if time.Now().After(deadline) {
			return res.Status, "", fmt.Errorf("timed out waiting for %s, last status %s", id, res.Status)
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func tryDo(req *http.Request) (*tryEnvelope, int, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var env tryEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, raw)
	}
	if !env.Success {
		return nil, resp.StatusCode, fmt.Errorf("server rejected request (%d): %s", resp.StatusCode, env.Message)
	}
	return &env, resp.StatusCode, nil
}
