package prompt

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/adasuite/adawallet/keymgr"
)

const (
	// EntropyBits is the entropy size used when generating a fresh
	// wallet mnemonic.
	EntropyBits = 256

	// MinEntropyBytes and MaxEntropyBytes bound entropy entered directly
	// as hex.
	MinEntropyBytes = 16
	MaxEntropyBytes = 64
)

// Provider adapts a passphrase already held in memory into the passphrase
// callback the key handler consumes.  The callback copies the passphrase
// into the handler's bounded buffer on every invocation.
func Provider(passphrase []byte) keymgr.PassphraseFunc {
	return func(buf []byte) (int, error) {
		if len(passphrase) > len(buf) {
			return -1, fmt.Errorf("passphrase exceeds %d bytes", len(buf))
		}
		return copy(buf, passphrase), nil
	}
}

// Terminal returns a passphrase callback that prompts on the controlling
// terminal each time the key handler needs to decrypt.
func Terminal(prefix string) keymgr.PassphraseFunc {
	return func(buf []byte) (int, error) {
		fmt.Printf("%s: ", prefix)
		pass, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return -1, err
		}
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 || len(pass) > len(buf) {
			return -1, nil
		}
		return copy(buf, pass), nil
	}
}

// promptList prompts the user with the given prefix, list of valid
// responses, and default list entry to use.  The function will repeat the
// prompt to the user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string,
	defaultEntry string) (string, error) {

	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// promptListBool prompts the user for a boolean (yes/no) with the given
// prefix.  The function will repeat the prompt to the user until they
// enter a valid reponse.
func promptListBool(reader *bufio.Reader, prefix string,
	defaultEntry string) (bool, error) {

	// Setup the valid responses.
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// promptPass prompts the user for a passphrase with the given prefix.  The
// function will ask the user to confirm the passphrase and will repeat the
// prompts until they enter a matching response.
func promptPass(prefix string, confirm bool) ([]byte, error) {
	// Prompt the user until they enter a passphrase.
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Print(prompt)
		pass, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Print("Confirm passphrase: ")
		confirmed, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		confirmed = bytes.TrimSpace(confirmed)
		if !bytes.Equal(pass, confirmed) {
			fmt.Println("The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// PrivatePass prompts the user for a new private passphrase protecting the
// key handler and confirms it.
func PrivatePass() ([]byte, error) {
	return promptPass("Enter the private passphrase for your new key handler",
		true)
}

// ExistingPass prompts for the passphrase of an existing key handler
// without confirmation.
func ExistingPass() ([]byte, error) {
	return promptPass("Enter the private passphrase of your key handler",
		false)
}

// Entropy prompts the user whether they want to recover wallet entropy
// from an existing mnemonic, enter it directly as hex, or have fresh
// entropy generated.  The returned entropy is what the key handler
// encrypts; for generated entropy the mnemonic is displayed once so the
// user can record it.
func Entropy(reader *bufio.Reader) ([]byte, error) {
	useExisting, err := promptListBool(reader, "Do you have an existing "+
		"recovery mnemonic or entropy you want to use?", "no")
	if err != nil {
		return nil, err
	}

	if !useExisting {
		entropy, err := bip39.NewEntropy(EntropyBits)
		if err != nil {
			return nil, err
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, err
		}

		fmt.Println("Your recovery mnemonic is:")
		fmt.Printf("\n%s\n\n", mnemonic)
		fmt.Println("IMPORTANT: Keep the mnemonic in a safe place as you " +
			"will NOT be able to restore your keys without it.")

		for {
			fmt.Print(`Once you have stored the mnemonic in a safe ` +
				`and secure location, enter "OK" to continue: `)
			confirmed, err := reader.ReadString('\n')
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(strings.ToLower(confirmed)) == "ok" {
				break
			}
		}

		return entropy, nil
	}

	for {
		fmt.Print("Enter existing recovery mnemonic or hex entropy: ")
		entered, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		entered = strings.TrimSpace(entered)

		// A mnemonic maps back to the entropy it encodes; anything
		// that is not a valid mnemonic is treated as hex entropy.
		if bip39.IsMnemonicValid(strings.ToLower(entered)) {
			return bip39.EntropyFromMnemonic(strings.ToLower(entered))
		}

		entropy, err := hex.DecodeString(entered)
		if err != nil || len(entropy) < MinEntropyBytes ||
			len(entropy) > MaxEntropyBytes {

			fmt.Printf("Invalid input.  Must be a recovery mnemonic "+
				"or a hexadecimal value of %d to %d bytes\n",
				MinEntropyBytes, MaxEntropyBytes)
			continue
		}

		return entropy, nil
	}
}
