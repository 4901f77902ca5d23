package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"resume-match-go/internal/matcher"
)

func extractCMD(opts *pipelineOptions) *cobra.Command {
	var withText bool
	cmd := &cobra.Command{
		Use:   "extract <file>...",
		Short: "Extract contact, skills and education from resume files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			profiles, err := p.extractFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			if !withText {
				for i := range profiles {
					profiles[i].RawText = ""
				}
			}
			return writeJSON(cmd.OutOrStdout(), profiles)
		},
	}
	cmd.Flags().BoolVar(&withText, "with-text", false, "include raw_text in the output")
	return cmd
}

func matchCMD(opts *pipelineOptions) *cobra.Command {
	var jdPath string
	var topK int
	cmd := &cobra.Command{
		Use:   "match --jd <file|-> <file>...",
		Short: "Rank resume files against a job description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jd, err := readJD(cmd.InOrStdin(), jdPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(jd) == "" {
				return fmt.Errorf("JD 文本为空")
			}
			p, err := newPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			profiles, err := p.extractFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), matcher.Rank(asCorpus(profiles), jd, topK))
		},
	}
	cmd.Flags().StringVar(&jdPath, "jd", "", "job description file, - for stdin")
	cmd.Flags().IntVar(&topK, "top-k", matcher.DefaultTopK, "number of results")
	_ = cmd.MarkFlagRequired("jd")
	return cmd
}

func readJD(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("读取JD失败: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
