package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

func square(x0, y0, x1, y1 float64) map[string]interface{} {
	return map[string]interface{}{
		"type":       "Feature",
		"properties": map[string]interface{}{},
		"geometry": map[string]interface{}{
			"type":        "Polygon",
			"coordinates": [][][]float64{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}},
		},
	}
}

func collection(features ...map[string]interface{}) map[string]interface{} {
	if features == nil {
		features = []map[string]interface{}{}
	}
	return map[string]interface{}{"type": "FeatureCollection", "features": features}
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	fmt.Println("1. Health...")
	if _, ok := sendRequest("GET", "/health", nil); !ok {
		fmt.Println("FAILED: Health")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health")

	// one building kept, one split in two, one demolished, one new
	fmt.Println("2. Matching two vintages...")
	payload := map[string]interface{}{
		"poly1": collection(
			square(0, 0, 10, 10),
			square(20, 0, 30, 10),
			square(40, 0, 50, 10),
		),
		"poly2": collection(
			square(0, 0, 10, 10),
			square(20, 0, 25, 10),
			square(25, 0, 30, 10),
			square(60, 0, 70, 10),
		),
		"mode":    "change",
		"persist": os.Getenv("PERSIST") != "",
	}
	body, ok := sendRequest("POST", "/match", payload)
	if !ok {
		fmt.Println("FAILED: Match")
		os.Exit(1)
	}

	var resp struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Components int `json:"components"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Summary.Components != 4 {
		fmt.Printf("FAILED: Match returned %d components (err=%v)\n", resp.Summary.Components, err)
		os.Exit(1)
	}
	fmt.Println("PASSED: Match")

	if os.Getenv("PERSIST") != "" {
		fmt.Println("3. Reading persisted run...")
		if _, ok := sendRequest("GET", "/runs/"+resp.RunID, nil); !ok {
			fmt.Println("FAILED: Get run")
			os.Exit(1)
		}
		if _, ok := sendRequest("DELETE", "/runs/"+resp.RunID, nil); !ok {
			fmt.Println("FAILED: Delete run")
			os.Exit(1)
		}
		fmt.Println("PASSED: Persisted run")
	}
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	fmt.Printf("Response: %d bytes\n", len(respBody))

	return respBody, true
}
