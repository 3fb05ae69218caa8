package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// newRingCmd fires a single RingEvent at a running `serve` instance —
// operational tooling for manual testing, not part of the pipeline itself.
func newRingCmd() *cobra.Command {
	var (
		server   string
		deviceID string
		imgPath  string
		audPath  string
	)
	cmd := &cobra.Command{
		Use:   "ring",
		Short: "POST a ring event to a running doorbell server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"device_id": deviceID,
				"timestamp": time.Now().Format(time.RFC3339),
			}
			if imgPath != "" {
				data, err := os.ReadFile(imgPath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				body["image_base64"] = base64.StdEncoding.EncodeToString(data)
			}
			if audPath != "" {
				data, err := os.ReadFile(audPath)
				if err != nil {
					return fmt.Errorf("read audio: %w", err)
				}
				body["audio_base64"] = base64.StdEncoding.EncodeToString(data)
			}

			payload, err := json.Marshal(body)
			if err != nil {
				return err
			}

			resp, err := http.Post(server+"/api/ring", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("ring request: %w", err)
			}
			defer resp.Body.Close()

			var out map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Printf("status=%d response=%+v\n", resp.StatusCode, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of a running doorbell server")
	cmd.Flags().StringVar(&deviceID, "device", "front-door-01", "device id to attribute the ring to")
	cmd.Flags().StringVar(&imgPath, "image", "", "path to a JPEG/PNG snapshot to attach")
	cmd.Flags().StringVar(&audPath, "audio", "", "path to a WAV clip to attach")
	return cmd
}
