// Command otapush pushes a CycloneBOOT-format image (built by imagebuilder)
// to a device's demo OTA TCP listener in length-prefixed chunks. The image
// bytes it carries are what update.Session.Process consumes on the device.
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"secureiap/config"
	"secureiap/credentials"
	"secureiap/version"
)

const (
	chunkSize    = 4096
	dialTimeout  = 10 * time.Second
	readTimeout  = 10 * time.Second
	chunkTimeout = 30 * time.Second
)

func main() {
	showVers := flag.Bool("version", false, "print build version and exit")
	host := flag.String("host", "", "device IP address (required)")
	port := flag.String("port", strconv.Itoa(int(config.OTAPort())), "device OTA port")
	imgPath := flag.String("image", "", "path to a CycloneBOOT-format image (required)")
	password := flag.String("password", "", "PSK/passphrase (prompted interactively if omitted)")
	flag.Parse()

	if *showVers {
		fmt.Println("otapush", version.String())
		return
	}

	if *host == "" || *imgPath == "" {
		fmt.Fprintln(os.Stderr, "otapush: -host and -image are required")
		os.Exit(1)
	}

	pass := resolvePassword(*password)

	if err := push(*host, *port, *imgPath, pass); err != nil {
		fmt.Fprintln(os.Stderr, "otapush:", err)
		os.Exit(1)
	}
}

// resolvePassword follows the flag > env > embedded-demo-default >
// interactive-prompt priority the teacher's console CLI uses for its own
// password resolution.
func resolvePassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPass := os.Getenv("SECUREIAP_PSK"); envPass != "" {
		return envPass
	}
	if demoPass := credentials.ConsolePassword(); demoPass != "" {
		return demoPass
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("PSK: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err == nil {
			return string(pass)
		}
	}
	return ""
}

func push(host, port, imgPath, password string) error {
	img, err := os.ReadFile(imgPath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	hash := sha256.Sum256(img)
	fmt.Printf("image: %s\n", imgPath)
	fmt.Printf("size: %d bytes\n", len(img))
	fmt.Printf("sha256: %x\n", hash[:8])

	addr := net.JoinHostPort(host, port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if password != "" {
		conn.Write([]byte("AUTH " + password + "\n"))
	}
	conn.Write([]byte("OTA\n"))

	resp := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	n, err := conn.Read(resp)
	if err != nil {
		return fmt.Errorf("no response from device: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(resp[:n])), "READY") {
		return fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(resp[:n])))
	}

	total := (len(img) + chunkSize - 1) / chunkSize
	for i := 0; i < len(img); i += chunkSize {
		end := i + chunkSize
		if end > len(img) {
			end = len(img)
		}
		chunk := img[i:end]

		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(chunk)))
		conn.Write(lenBuf)
		conn.Write(chunk)

		conn.SetReadDeadline(time.Now().Add(chunkTimeout))
		n, err := conn.Read(resp)
		if err != nil {
			return fmt.Errorf("chunk %d/%d: no ACK: %w", i/chunkSize+1, total, err)
		}
		if !strings.HasPrefix(strings.TrimSpace(string(resp[:n])), "ACK") {
			return fmt.Errorf("chunk %d/%d: bad response: %s", i/chunkSize+1, total, strings.TrimSpace(string(resp[:n])))
		}
		fmt.Printf("\r[%3d%%] chunk %d/%d", (i+len(chunk))*100/len(img), i/chunkSize+1, total)
	}
	fmt.Println()

	conn.Write([]byte(fmt.Sprintf("DONE %x\n", hash)))
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	n, err = conn.Read(resp)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if strings.TrimSpace(string(resp[:n])) != "VERIFIED" {
		return fmt.Errorf("device rejected image: %s", strings.TrimSpace(string(resp[:n])))
	}

	fmt.Println("image accepted, device will reboot")
	return nil
}
