package main

import (
	"github.com/synaptica-ai/readmission/pkg/common/config"
	"github.com/synaptica-ai/readmission/pkg/features"
	"github.com/synaptica-ai/readmission/pkg/ingestion"
	"github.com/synaptica-ai/readmission/pkg/pipeline"
	"github.com/synaptica-ai/readmission/pkg/runs"
	"github.com/synaptica-ai/readmission/pkg/terminology"
)

func loadNormalizer(cfg *config.Config) (*terminology.Normalizer, error) {
	path := rootFlags.vocabulary
	if path == "" {
		path = cfg.VocabularyPath
	}
	vocab, err := terminology.Load(path)
	if err != nil {
		return nil, err
	}
	return terminology.NewNormalizer(vocab)
}

func pipelineConfig(cfg *config.Config, includeStandardized bool) pipeline.Config {
	return pipeline.Config{
		OutlierMultiplier:      cfg.OutlierIQRMultiplier,
		OutlierMinSamples:      cfg.OutlierMinSamples,
		NearDuplicateThreshold: cfg.NearDuplicateThreshold,
		Features:               features.Options{IncludeStandardizedNames: includeStandardized},
	}
}

func httpSourceConfig(cfg *config.Config) ingestion.HTTPSourceConfig {
	return ingestion.HTTPSourceConfig{
		BaseURL:      cfg.SourceBaseURL,
		TokenURL:     cfg.SourceTokenURL,
		ClientID:     cfg.SourceClientID,
		ClientSecret: cfg.SourceClientSecret,
		Timeout:      cfg.ReadTimeout,
	}
}

// sourceResolver resolves run locations as snapshot names under the export
// URL when set and under the source directory otherwise.
func sourceResolver(cfg *config.Config) runs.SourceResolver {
	return runs.NewSourceResolver(runs.SourceRoots{Dir: cfg.SourceDir, HTTP: httpSourceConfig(cfg)})
}
