package functions

import (
	"errors"
	"fmt"

	"gridadmin/internal/cache"
	"gridadmin/internal/function"
)

// ListDeployedID — id функции перечисления развернутых jar.
const ListDeployedID = "list-deployed"

// ListDeployed возвращает пары (имя jar, канонический путь) участника.
type ListDeployed struct{}

func (f *ListDeployed) ID() string             { return ListDeployedID }
func (f *ListDeployed) HasResult() bool        { return true }
func (f *ListDeployed) OptimizeForWrite() bool { return false }
func (f *ListDeployed) IsHA() bool             { return false }

func (f *ListDeployed) Execute(ctx *function.Context) {
	function.Complete(ctx, func() (function.Result, error) {
		memberID := ctx.Member().DisplayID()
		if ctx.Cache() == nil || ctx.Deployer() == nil {
			return function.Result{}, errors.New("member has no cache or deployer")
		}
		if _, err := ctx.Cache().DistributedSystem(); err != nil {
			if errors.Is(err, cache.ErrCacheClosed) {
				return function.DomainFailure(memberID, function.CodeCacheClosed, ""), nil
			}
			return function.Result{}, err
		}

		artifacts, err := ctx.Deployer().ListDeployed()
		if err != nil {
			return function.Result{}, fmt.Errorf("could not list JAR files: %w", err)
		}
		values := make([]string, 0, len(artifacts)*2)
		for _, a := range artifacts {
			values = append(values, a.Name, a.CanonicalPath)
		}
		return function.Success(memberID, values...), nil
	})
}
