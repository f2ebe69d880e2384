// Command devtoken prints a bearer token accepted by the API, for local
// testing against a server sharing the same JWT_SECRET.
package main

import (
    "flag"
    "fmt"
    "os"
    "time"

    "github.com/iliyamo/cinema-seat-booking/internal/config"
    "github.com/iliyamo/cinema-seat-booking/internal/middleware"
)

func main() {
    user := flag.String("user", "dev-user", "subject of the token")
    ttl := flag.Duration("ttl", time.Hour, "token lifetime")
    flag.Parse()

    if err := config.LoadDotEnv(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
    secret := os.Getenv("JWT_SECRET")
    if secret == "" {
        fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
        os.Exit(1)
    }
    tok, err := middleware.IssueToken(secret, *user, *ttl)
    if err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
    fmt.Println(tok.Token)
}
