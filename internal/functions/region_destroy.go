package functions

import (
	"errors"
	"fmt"
	"strings"

	"gridadmin/internal/cache"
	"gridadmin/internal/function"
)

// RegionDestroyID — id функции удаления региона.
const RegionDestroyID = "destroy-region"

// EntityRegion — вид сущности конфигурации для регионов.
const EntityRegion = "region"

// RegionDestroy удаляет регион и сообщает об изменении конфигурации.
type RegionDestroy struct{}

func (f *RegionDestroy) ID() string             { return RegionDestroyID }
func (f *RegionDestroy) HasResult() bool        { return true }
func (f *RegionDestroy) OptimizeForWrite() bool { return false }
func (f *RegionDestroy) IsHA() bool             { return false }

func (f *RegionDestroy) Execute(ctx *function.Context) {
	function.Complete(ctx, func() (function.Result, error) {
		path, _ := ctx.Arguments().(string)
		if ctx.FunctionID() != RegionDestroyID || path == "" {
			return function.Result{}, function.Domain(function.CodeInvalidArguments, "region path is required")
		}
		if ctx.Cache() == nil {
			return function.Result{}, errors.New("member has no cache")
		}

		region, err := ctx.Cache().Region(path)
		if err != nil {
			return function.Result{}, classifyDestroyError(path, err)
		}
		if err := region.DestroyRegion(); err != nil {
			return function.Result{}, classifyDestroyError(path, err)
		}

		name := strings.TrimPrefix(path, cache.Separator)
		entity := function.ConfigEntity{Kind: EntityRegion, AttributeName: "name", AttributeValue: name}
		return function.SuccessEntity(ctx.Member().DisplayID(), entity, path), nil
	})
}

func classifyDestroyError(path string, err error) error {
	switch {
	case errors.Is(err, cache.ErrRegionDestroyed):
		return function.DomainCause(function.CodeIllegalState, err)
	case errors.Is(err, cache.ErrRegionNotFound):
		return function.Domain(function.CodeNotFound, "Error while destroying region %s - region not found", path)
	case errors.Is(err, cache.ErrInvalidRegionPath):
		return function.Domain(function.CodeInvalidArguments, "invalid region path %q", path)
	case errors.Is(err, cache.ErrCacheClosed):
		return function.Domain(function.CodeCacheClosed, "Error while destroying region %s - %v", path, err)
	default:
		return fmt.Errorf("error while destroying region %s: %w", path, err)
	}
}
