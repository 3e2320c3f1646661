package notion

import "context"

// DatabaseSource addresses a collection through the classic database endpoint.
type DatabaseSource struct {
	client *Client
	token  string
}

func NewDatabaseSource(client *Client, token string) *DatabaseSource {
	return &DatabaseSource{client: client, token: token}
}

func (s *DatabaseSource) Kind() string {
	return "database"
}

func (s *DatabaseSource) Query(ctx context.Context, collectionID string, req QueryRequest) (*QueryResult, error) {
	return s.client.QueryDatabase(ctx, s.token, collectionID, req)
}

// DataSourceSource addresses a collection through the data source endpoint
// used by workspaces that were migrated to multi-source databases.
type DataSourceSource struct {
	client *Client
	token  string
}

func NewDataSourceSource(client *Client, token string) *DataSourceSource {
	return &DataSourceSource{client: client, token: token}
}

func (s *DataSourceSource) Kind() string {
	return "data_source"
}

func (s *DataSourceSource) Query(ctx context.Context, collectionID string, req QueryRequest) (*QueryResult, error) {
	return s.client.QueryDataSource(ctx, s.token, collectionID, req)
}
