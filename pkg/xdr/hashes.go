package xdr

import "context"

// Hash exception lists.
const (
	Blocklist = "blacklist"
	Allowlist = "whitelist"
)

// AddHashExceptions adds SHA256 hashes to the blocklist or allowlist and
// returns the raw reply.
func (c *Client) AddHashExceptions(ctx context.Context, list string, hashes []string, comment string) (interface{}, error) {
	req := map[string]interface{}{"hash_list": hashes}
	if comment != "" {
		req["comment"] = comment
	}
	var reply interface{}
	if err := c.Post(ctx, "hash_exceptions/"+list+"/", req, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

