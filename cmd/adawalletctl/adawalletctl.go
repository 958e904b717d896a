package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	showHelpMessage = "Specify -h to show available options"
	listCmdMessage  = "Specify -l to list available commands"
)

func version() string {
	return "0.1.0-beta"
}

// supportedMethods are the server methods the client knows about, mapped
// to a one-line parameter synopsis shown by the -l flag.
var supportedMethods = map[string]string{
	"createhandler":    `{"name", "entropy", "passphrase"}`,
	"deletehandler":    `{"name"}`,
	"exporthandler":    `{"name"}`,
	"getaccountpubkey": `{"name", "passphrase", "purpose", "cointype", "account"}`,
	"importhandler":    `{"name", "envelope"}`,
	"listhandlers":     `{}`,
	"signtransaction":  `{"name", "passphrase", "transaction", "paths"}`,
}

// listCommands categorizes and lists all of the usable commands along with
// their one-line parameter synopsis.
func listCommands() {
	methods := make([]string, 0, len(supportedMethods))
	for method := range supportedMethods {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	for _, method := range methods {
		fmt.Printf("%s %s\n", method, supportedMethods[method])
	}
}

// usage displays the general usage when the help flag is not displayed and
// an invalid command was specified.
func usage(errorMessage string) {
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	fmt.Fprintln(os.Stderr, errorMessage)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <command> [jsonparams]\n\n",
		appName)
	fmt.Fprintln(os.Stderr, showHelpMessage)
	fmt.Fprintln(os.Stderr, listCmdMessage)
}

// request and response mirror the server's JSON-RPC shapes.
type request struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// sendRequest dials the websocket RPC server, issues a single request, and
// returns the raw result.
func sendRequest(cfg *config, method string, params json.RawMessage) (json.RawMessage, error) {
	url := "ws://" + cfg.RPCServer
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %v", cfg.RPCServer, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(request{
		ID:     1,
		Method: method,
		Params: params,
	}); err != nil {
		return nil, err
	}

	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s (code: %d)", resp.Error.Message,
			resp.Error.Code)
	}
	return resp.Result, nil
}

func main() {
	cfg, args, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	if cfg.ListCommands {
		listCommands()
		os.Exit(0)
	}
	if len(args) < 1 {
		usage("No command specified")
		os.Exit(1)
	}

	// Ensure the specified method identifies a valid registered command.
	method := args[0]
	if _, ok := supportedMethods[method]; !ok {
		fmt.Fprintf(os.Stderr, "Unrecognized command '%s'\n", method)
		fmt.Fprintln(os.Stderr, listCmdMessage)
		os.Exit(1)
	}

	// The optional second argument is a JSON object with the method
	// parameters.  Since some parameters, such as transaction bodies, can
	// involve data which is too large for the Operating System to allow
	// as a normal command line parameter, support using '-' as an
	// argument to allow the parameters to be read from a stdin pipe.
	params := json.RawMessage(`{}`)
	if len(args) > 1 {
		raw := args[1]
		if raw == "-" {
			piped, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read data "+
					"from stdin: %v\n", err)
				os.Exit(1)
			}
			raw = strings.TrimRight(string(piped), "\r\n")
		}
		if !json.Valid([]byte(raw)) {
			usage(fmt.Sprintf("Parameters for '%s' are not valid JSON",
				method))
			os.Exit(1)
		}
		params = json.RawMessage(raw)
	}

	result, err := sendRequest(cfg, method, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Choose how to display the result based on its type.
	strResult := string(result)
	if strings.HasPrefix(strResult, "{") || strings.HasPrefix(strResult, "[") {
		var dst bytes.Buffer
		if err := json.Indent(&dst, result, "", "  "); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to format result: %v", err)
			os.Exit(1)
		}
		fmt.Println(dst.String())

	} else if strings.HasPrefix(strResult, `"`) {
		var str string
		if err := json.Unmarshal(result, &str); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to unmarshal result: %v", err)
			os.Exit(1)
		}
		fmt.Println(str)

	} else if strResult != "null" && strResult != "" {
		fmt.Println(strResult)
	}
}
