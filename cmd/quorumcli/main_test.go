package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest/assert"
)

func tempConfig(t testing.TB) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "quorumcli")
	if err != nil {
		t.Fatalf("cannot create temporary directory: %s", err)
	}
	return filepath.Join(dir, "config.toml"), func() { os.RemoveAll(dir) }
}

func TestToolName(t *testing.T) {
	cases := map[string]string{
		"GET_PROPOSAL":     "GET_PROPOSAL",
		"get-proposal":     "GET_PROPOSAL",
		"approve_proposal": "APPROVE_PROPOSAL",
	}
	for given, want := range cases {
		t.Run(given, func(t *testing.T) {
			assert.Equal(t, want, toolName(given))
		})
	}
}

func TestCmdTools(t *testing.T) {
	path, cleanup := tempConfig(t)
	defer cleanup()

	var out bytes.Buffer
	assert.Nil(t, cmdTools(nil, &out, []string{"-config", path}))
	for _, name := range []string{"SHOW_CONFIG", "CREATE_MULTISIG", "APPROVE_PROPOSAL", "EXECUTE_TRANSACTION"} {
		if !strings.Contains(out.String(), name+"\n") {
			t.Errorf("%s not listed", name)
		}
	}
}

func TestCmdCall(t *testing.T) {
	path, cleanup := tempConfig(t)
	defer cleanup()

	var out bytes.Buffer
	err := cmdCall(strings.NewReader(""), &out, []string{"-config", path, "connection-update", `{"rpcUrl": "http://ledger:26657"}`})
	assert.Nil(t, err)

	out.Reset()
	err = cmdCall(strings.NewReader(`{}`), &out, []string{"-config", path, "show_config"})
	assert.Nil(t, err)

	var view struct {
		Data struct {
			RPCURL string `json:"rpcUrl"`
		} `json:"data"`
	}
	assert.Nil(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "http://ledger:26657", view.Data.RPCURL)

	out.Reset()
	err = cmdCall(strings.NewReader(""), &out, []string{"-config", path, "NO_SUCH_TOOL", `{}`})
	if err == nil {
		t.Fatal("unknown tool must fail")
	}
	var failure struct {
		Code uint32 `json:"code"`
	}
	assert.Nil(t, json.Unmarshal(out.Bytes(), &failure))
	code, _ := errors.ABCIInfo(errors.ErrNotFound, false)
	assert.Equal(t, code, failure.Code)
}

func TestKeygenSave(t *testing.T) {
	path, cleanup := tempConfig(t)
	defer cleanup()

	var out bytes.Buffer
	assert.Nil(t, cmdKeygen(nil, &out, []string{"-config", path, "-save"}))
	generated := strings.TrimSpace(out.String())

	out.Reset()
	assert.Nil(t, cmdKeyaddr(nil, &out, []string{"-config", path}))
	assert.Equal(t, generated, strings.TrimSpace(out.String()))

	if err := cmdKeygen(nil, &out, []string{"-config", path, "-save"}); err == nil {
		t.Fatal("configured wallet must not be overwritten")
	}
}

func TestKeyaddrFromInput(t *testing.T) {
	key := crypto.GenPrivateKey()

	var out bytes.Buffer
	assert.Nil(t, cmdKeyaddr(strings.NewReader(key.String()+"\n"), &out, []string{"-stdin"}))
	assert.Equal(t, key.Address().String()+"\n", out.String())

	_, err := keyAddress(strings.NewReader("not a key"), "", true)
	if !errors.ErrInvalidInput.Is(err) {
		t.Fatalf("unexpected error: %+v", err)
	}
}

func TestKeyaddrWithoutWallet(t *testing.T) {
	path, cleanup := tempConfig(t)
	defer cleanup()

	_, err := keyAddress(nil, path, false)
	if !errors.ErrNotFound.Is(err) {
		t.Fatalf("unexpected error: %+v", err)
	}
}
