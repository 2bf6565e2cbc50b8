// Package builders 注册内置抽取器类型，import 即生效：
//
//	import _ "github.com/rushteam/featx/config/builders"
package builders

import (
	"context"

	"github.com/rushteam/featx/config"
	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/model"
	"github.com/rushteam/featx/pipeline"
	"github.com/rushteam/featx/pkg/conv"
	"github.com/rushteam/featx/service"
)

func init() {
	config.Register("hub", BuildHub)
	config.Register("hub.image", BuildHubImage)
	config.Register("hub.image.embedding", BuildHubImageEmbedding)
	config.Register("hub.image.classification", BuildHubImageClassification)
	config.Register("hub.text", BuildHubText)
	config.Register("hub.text.embedding", BuildHubTextEmbedding)
	config.Register("keras.application", BuildKerasApplication)
}

// classIndexTTL 类别索引缓存一天
const classIndexTTL = 24 * 3600

func BuildHub(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	opts, err := config.CommonOptions(env, cfg)
	if err != nil {
		return nil, err
	}
	kinds, ok, err := conv.ConfigGetStrings(cfg, "stim_kinds")
	if err != nil {
		return nil, err
	}
	if ok {
		sk := make([]core.StimKind, len(kinds))
		for i, k := range kinds {
			sk[i] = core.StimKind(k)
		}
		opts = append(opts, extractor.WithStimKinds(sk...))
	}
	m, err := config.RequireModel(ctx, env, cfg, "url_or_path")
	if err != nil {
		return nil, err
	}
	ex, err := extractor.NewHubExtractor(m, opts...)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

type imageConstructor func(core.Model, ...extractor.Option) (*extractor.ImageExtractor, error)

func buildImage(ctx context.Context, env *pipeline.Env, cfg map[string]any, newFn imageConstructor) (extractor.Extractor, error) {
	opts, err := config.CommonOptions(env, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extractor.WithRescaleRGB(conv.ConfigGetBool(cfg, "rescale_rgb", true)))
	shape, ok, err := conv.ConfigGetInts(cfg, "reshape_input")
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, extractor.WithReshapeInput(shape...))
	}
	m, err := config.RequireModel(ctx, env, cfg, "url_or_path")
	if err != nil {
		return nil, err
	}
	ex, err := newFn(m, opts...)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return ex, nil
}

func BuildHubImage(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	return buildImage(ctx, env, cfg, extractor.NewImageExtractor)
}

func BuildHubImageEmbedding(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	return buildImage(ctx, env, cfg, extractor.NewImageEmbeddingExtractor)
}

func BuildHubImageClassification(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	return buildImage(ctx, env, cfg, extractor.NewImageClassificationExtractor)
}

type textConstructor func(core.Model, ...extractor.Option) (*extractor.TextExtractor, error)

func buildText(ctx context.Context, env *pipeline.Env, cfg map[string]any, newFn textConstructor) (extractor.Extractor, error) {
	opts, err := config.CommonOptions(env, cfg)
	if err != nil {
		return nil, err
	}
	pre, ok, err := config.OpenModel(ctx, env, cfg, "preprocessor_url_or_path")
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, extractor.WithPreprocessor(pre))
	}
	m, err := config.RequireModel(ctx, env, cfg, "url_or_path")
	if err != nil {
		if pre != nil {
			_ = pre.Close()
		}
		return nil, err
	}
	ex, err := newFn(m, opts...)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func BuildHubText(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	return buildText(ctx, env, cfg, extractor.NewTextExtractor)
}

func BuildHubTextEmbedding(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	return buildText(ctx, env, cfg, extractor.NewTextEmbeddingExtractor)
}

func BuildKerasApplication(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
	opts, err := config.CommonOptions(env, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		extractor.WithArchitecture(conv.ConfigGet(cfg, "architecture", model.DefaultArchitecture)),
		extractor.WithWeights(conv.ConfigGet(cfg, "weights", model.DefaultWeights)),
		extractor.WithNumPredictions(conv.ConfigGetInt(cfg, "num_predictions", 5)),
	)
	var indexOpts []model.ClassIndexOption
	if env != nil && env.Store != nil {
		indexOpts = append(indexOpts, model.WithClassIndexStore(env.Store, classIndexTTL))
	}
	opts = append(opts, extractor.WithClassIndexSource(conv.ConfigGet(cfg, "class_index", ""), indexOpts...))

	var loader model.Loader
	if env != nil && env.Loader != nil {
		loader = env.Loader
	} else if root := conv.ConfigGet(cfg, "weights_root", ""); root != "" {
		opener := service.NewOpener()
		if env != nil && env.Opener != nil {
			opener = env.Opener
		}
		loader = service.NewArchitectureLoader(opener, root)
	}
	ex, err := extractor.NewApplicationExtractor(ctx, loader, opts...)
	if err != nil {
		return nil, err
	}
	return ex, nil
}
