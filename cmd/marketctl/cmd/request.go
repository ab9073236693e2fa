package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Joelisking/projectx-client/apiclient"
	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send a raw authenticated request, e.g. request GET /marketplace/listings --param tag=a --param tag=b",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawParams, _ := cmd.Flags().GetStringArray("param")
		data, _ := cmd.Flags().GetString("data")

		params, err := parseParams(rawParams)
		if err != nil {
			return err
		}

		req := apiclient.Request{
			Method: strings.ToUpper(args[0]),
			Path:   args[1],
			Params: params,
		}
		if data != "" {
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("%w: --data is not valid JSON", clienterrors.ErrInvalidRequest)
			}
			req.Body = json.RawMessage(data)
		}

		resp, err := current.exec.Do(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "HTTP %d\n", resp.StatusCode)

		var pretty bytes.Buffer
		if json.Indent(&pretty, resp.Body, "", "  ") == nil {
			fmt.Fprintln(out, pretty.String())
		} else if len(resp.Body) > 0 {
			fmt.Fprintln(out, string(resp.Body))
		}
		return resp.Err()
	},
}

func init() {
	requestCmd.Flags().StringArray("param", nil, "query parameter key=value, repeat a key for arrays")
	requestCmd.Flags().String("data", "", "JSON request body")
}

// parseParams turns key=value pairs into query params. Repeated keys become
// arrays.
func parseParams(raw []string) (apiclient.Params, error) {
	values := map[string][]string{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: param %q must be key=value", clienterrors.ErrInvalidRequest, kv)
		}
		values[k] = append(values[k], v)
	}

	params := apiclient.Params{}
	for k, vs := range values {
		if len(vs) == 1 {
			params[k] = vs[0]
		} else {
			params[k] = vs
		}
	}
	return params, nil
}
