package dispatch

import (
	"context"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/gql"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

// FetchSchema introspects the tab's GraphQL endpoint with the tab's resolved
// headers. Concurrent fetches for the same tab and URL share one round trip.
func (s *Session) FetchSchema(ctx context.Context, tabID string) error {
	tab, settings, ok := s.tab(tabID)
	if !ok {
		return ErrUnknownTab
	}
	if tab.Request.Protocol != model.ProtocolGraphQL {
		return errdef.New(errdef.CodeValidation, "tab %q is not a graphql tab", tab.Name)
	}
	if !workspace.SchemaFetchable(tab.Request.URL) {
		return nil
	}

	s.Dispatch(workspace.SchemaLoading(tabID))

	eff, err := merge.Build(tab.Request, settings)
	if err != nil {
		s.Dispatch(workspace.SchemaFailed(tabID, errdef.Message(err)))
		return err
	}
	headers := make([]merge.Pair, 0, len(eff.Headers))
	for _, h := range eff.Headers {
		if !strings.EqualFold(h.Key, "Content-Type") {
			headers = append(headers, h)
		}
	}
	if s.transport == nil {
		err := errdef.New(errdef.CodeHTTP, "transport unavailable")
		s.Dispatch(workspace.SchemaFailed(tabID, errdef.Message(err)))
		return err
	}

	v, err, _ := s.schemas.Do(tabID+"|"+eff.URL, func() (any, error) {
		return gql.FetchSchema(ctx, s.transport, eff.URL, headers)
	})
	if err != nil {
		s.Dispatch(workspace.SchemaFailed(tabID, errdef.Message(err)))
		return err
	}
	s.Dispatch(workspace.SchemaLoaded(tabID, v.(*model.GraphQLSchema)))
	return nil
}
