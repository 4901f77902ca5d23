package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"resume-match-go/internal/config"
	"resume-match-go/internal/extract"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/types"
)

type pipelineOptions struct {
	lexiconFile string
	pdfEngine   string
	workers     int
}

// pipeline 解码加抽取，不依赖任何存储
type pipeline struct {
	registry  *parser.Registry
	extractor *extract.Extractor
	workers   int
}

func newPipeline(ctx context.Context, opts *pipelineOptions) (*pipeline, error) {
	cfg := config.DefaultConfig()
	cfg.Parser.PDFEngine = opts.pdfEngine

	registry, err := parser.BuildRegistry(ctx, cfg, logger.StdLogger)
	if err != nil {
		return nil, err
	}

	extractor := extract.Default()
	if opts.lexiconFile != "" {
		lex, err := extract.LoadLexicon(opts.lexiconFile)
		if err != nil {
			return nil, err
		}
		if extractor, err = extract.New(extract.WithLexicon(lex)); err != nil {
			return nil, err
		}
	}

	workers := opts.workers
	if workers <= 0 {
		workers = 1
	}
	return &pipeline{registry: registry, extractor: extractor, workers: workers}, nil
}

// extractFiles 并发处理多个文件，结果顺序与输入一致；任一文件失败即返回错误
func (p *pipeline) extractFiles(ctx context.Context, paths []string) ([]types.ExtractedProfile, error) {
	profiles := make([]types.ExtractedProfile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("读取 %s 失败: %w", path, err)
			}
			name := filepath.Base(path)
			doc, err := p.registry.Decode(gctx, data, name)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			profiles[i] = p.extractor.ExtractProfile(doc, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// asCorpus 把抽取结果转换为匹配语料，编号从1开始
func asCorpus(profiles []types.ExtractedProfile) []types.StoredProfile {
	corpus := make([]types.StoredProfile, 0, len(profiles))
	for i, p := range profiles {
		corpus = append(corpus, types.StoredProfile{
			ProfileID: strconv.Itoa(i + 1),
			Filename:  p.Filename,
			Name:      p.Name,
			Email:     p.Email,
			Phone:     p.Phone,
			Skills:    p.SkillsText(),
			Education: p.EducationText(),
			RawText:   p.RawText,
		})
	}
	return corpus
}
