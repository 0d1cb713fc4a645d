package es

import (
	"Tandem/internal/model"
	"context"
	"errors"
	log "log/slog"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/versiontype"
	"github.com/goccy/go-json"
)

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

type UserRepo interface {
	EnsureIndex(ctx context.Context) error
	IndexUser(ctx context.Context, user *model.User) error
	SearchUsers(ctx context.Context, excludeID uint64, query string, limit int) ([]uint64, error)
}

type UserRepoImpl struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewUserRepo(client *elasticsearch.TypedClient, index string) UserRepo {
	return &UserRepoImpl{client: client, index: index}
}

// EnsureIndex 索引不存在时创建，name 使用 keyword 以支持通配查询
func (s *UserRepoImpl) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.Indices.Exists(s.index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.client.Indices.Create(s.index).
		Mappings(&types.TypeMapping{
			Properties: map[string]types.Property{
				"id":    types.NewUnsignedLongNumberProperty(),
				"name":  types.NewKeywordProperty(),
				"email": types.NewKeywordProperty(),
				"image": types.NewKeywordProperty(),
			},
		}).
		Do(ctx)
	return err
}

// IndexUser 以更新时间作为外部版本号，旧数据不会覆盖新数据
func (s *UserRepoImpl) IndexUser(ctx context.Context, user *model.User) error {
	docID := strconv.FormatUint(user.ID, 10)
	version := user.UpdatedAt.UnixNano()

	_, err := s.client.Index(s.index).
		Id(docID).
		Document(NewUserES(user)).
		Version(strconv.FormatInt(version, 10)).
		VersionType(versiontype.External).
		Do(ctx)

	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) {
			if e.Status == ConflictCode {
				log.Warn("Version conflict detected, skipping old data",
					"user_id", user.ID,
					"version", version)
				return nil
			}
		}
		return err
	}

	return nil
}

// SearchUsers 名称子串匹配，忽略大小写，空查询返回全部
func (s *UserRepoImpl) SearchUsers(ctx context.Context, excludeID uint64, query string, limit int) ([]uint64, error) {
	boolQuery := &types.BoolQuery{
		MustNot: []types.Query{{
			Term: map[string]types.TermQuery{"id": {Value: excludeID}},
		}},
	}
	if query != "" {
		pattern := "*" + wildcardEscaper.Replace(query) + "*"
		caseInsensitive := true
		boolQuery.Must = []types.Query{{
			Wildcard: map[string]types.WildcardQuery{
				"name": {Value: &pattern, CaseInsensitive: &caseInsensitive},
			},
		}}
	} else {
		boolQuery.Must = []types.Query{{MatchAll: &types.MatchAllQuery{}}}
	}

	resp, err := s.client.Search().
		Index(s.index).
		Size(limit).
		Query(&types.Query{Bool: boolQuery}).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		if hit.Source_ == nil {
			continue
		}
		var doc UserES
		if err = json.Unmarshal(hit.Source_, &doc); err != nil {
			continue
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
