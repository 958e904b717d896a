package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adasuite/adawallet/internal/prompt"
	"github.com/adasuite/adawallet/keymgr"
	"github.com/adasuite/adawallet/keystore"
)

// keystorePath returns the location of the key handler database inside the
// application data directory.
func keystorePath(cfg *config) string {
	return filepath.Join(cfg.AppDataDir, defaultKeystoreName)
}

// createKeyHandler prompts the user for information needed to generate a
// new hierarchical key handler and stores the resulting envelope in the
// keystore at the provided path.
func createKeyHandler(cfg *config) error {
	store, err := keystore.Open(keystorePath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	reader := bufio.NewReader(os.Stdin)

	// Start by prompting for the private passphrase which gates every
	// future use of the handler.
	privPass, err := prompt.PrivatePass()
	if err != nil {
		return err
	}

	// Ascertain the wallet generation entropy.  This will either be an
	// automatically generated value the user has already confirmed or a
	// value the user has entered which has already been validated.
	entropy, err := prompt.Entropy(reader)
	if err != nil {
		return err
	}

	fmt.Print("Enter a name for the key handler: ")
	name, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)

	fmt.Println("Creating the key handler...")
	handler, err := keymgr.NewBip32(entropy, privPass,
		prompt.Provider(privPass))
	if err != nil {
		return err
	}
	defer handler.Close()

	envelope, err := handler.Serialize()
	if err != nil {
		return err
	}
	if err := store.Put(name, envelope); err != nil {
		return err
	}

	fmt.Println("The key handler has been created successfully.")
	return nil
}

// createNonInteractive stores a new hierarchical key handler built from
// entropy given on the command line.  The passphrase is still read from
// the terminal so it never appears in shell history.
func createNonInteractive(cfg *config) error {
	store, err := keystore.Open(keystorePath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	privPass, err := prompt.PrivatePass()
	if err != nil {
		return err
	}

	handler, err := keymgr.NewBip32(cfg.CreateEntropy.Bytes, privPass,
		prompt.Provider(privPass))
	if err != nil {
		return err
	}
	defer handler.Close()

	envelope, err := handler.Serialize()
	if err != nil {
		return err
	}
	if err := store.Put(cfg.CreateName, envelope); err != nil {
		return err
	}

	fmt.Println("The key handler has been created successfully.")
	return nil
}

// checkCreateDir checks that the path exists and is a directory.
// If path does not exist, it is created.
func checkCreateDir(path string) error {
	if fi, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Attempt data directory creation
			if err = os.MkdirAll(path, 0700); err != nil {
				return fmt.Errorf("cannot create directory: %s", err)
			}
		} else {
			return fmt.Errorf("error checking directory: %s", err)
		}
	} else {
		if !fi.IsDir() {
			return fmt.Errorf("path '%s' is not a directory", path)
		}
	}

	return nil
}
