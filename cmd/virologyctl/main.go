// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL      string
	bearerToken string
	output      string
	timeout     time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "virologyctl",
		Short: "Virology Test Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("VIROLOGYCTL_API_URL")
			}
			if bearerToken == "" {
				bearerToken = os.Getenv("VIROLOGYCTL_BEARER_TOKEN")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set VIROLOGYCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "bearer-token", "", "API bearer token (or set VIROLOGYCTL_BEARER_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(resultCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("virologyctl version %s\n", version)
		},
	}
}

// postJSON はベアラートークン付きでPOSTリクエストを送る。
func postJSON(path string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	return httpClient.Do(req)
}

func requireFlags() error {
	if apiURL == "" {
		return fmt.Errorf("--api-url is required (or set VIROLOGYCTL_API_URL)")
	}
	if bearerToken == "" {
		return fmt.Errorf("--bearer-token is required (or set VIROLOGYCTL_BEARER_TOKEN)")
	}
	return nil
}

// printOrderResponse は注文レスポンスを整形して出力する。
func printOrderResponse(body []byte) error {
	if output == "json" {
		fmt.Println(string(body))
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Printf("Polling token:    %v\n", result["testResultPollingToken"])
	fmt.Printf("Submission token: %v\n", result["diagnosisKeySubmissionToken"])
	fmt.Printf("CTA token:        %v\n", result["tokenParameterValue"])
	fmt.Printf("Website URL:      %v\n", result["websiteUrlWithQuery"])
	return nil
}

// orderCmd は自宅検査キットの注文コマンド。
func orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Order a home test kit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(); err != nil {
				return err
			}

			resp, err := postJSON("/virology-test/home-kit/order", nil)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("API error: status %d", resp.StatusCode)
			}

			return printOrderResponse(body)
		},
	}
}

// registerCmd は検査キットの登録コマンド。
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register a home test kit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(); err != nil {
				return err
			}

			resp, err := postJSON("/virology-test/home-kit/register", nil)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("API error: status %d", resp.StatusCode)
			}

			return printOrderResponse(body)
		},
	}
}

// resultCmd は検査結果のポーリングコマンド。
func resultCmd() *cobra.Command {
	var pollingToken string
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Poll for a test result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(); err != nil {
				return err
			}

			payload, err := json.Marshal(map[string]string{"testResultPollingToken": pollingToken})
			if err != nil {
				return fmt.Errorf("encoding request: %w", err)
			}

			resp, err := postJSON("/virology-test/results", payload)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			switch resp.StatusCode {
			case http.StatusOK:
				if output == "json" {
					fmt.Println(string(body))
					return nil
				}
				var result map[string]interface{}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Result:        %v\n", result["testResult"])
				fmt.Printf("Test end date: %v\n", result["testEndDate"])
				return nil
			case http.StatusNoContent:
				fmt.Println("Result not available yet.")
				return nil
			case http.StatusNotFound:
				return fmt.Errorf("no test order found for this token")
			default:
				return fmt.Errorf("API error: status %d", resp.StatusCode)
			}
		},
	}
	cmd.Flags().StringVar(&pollingToken, "token", "", "Test result polling token (required)")
	cmd.MarkFlagRequired("token")
	return cmd
}
