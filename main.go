package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/lindend/lstack/internal/db"
	"github.com/lindend/lstack/internal/lso"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	stack(100000)
}

func stack(numElements int) {
	c, err := db.NewCollection(path.Join(os.TempDir(), "lstack"), "demo")
	if err != nil {
		panic(err)
	}
	defer c.Close()

	const bin = "messages"
	// A stack left by an earlier run is reused
	err = c.Create(bin, lso.DefaultOptions())
	if errors.Is(err, lso.ErrAlreadyExists) {
		log.Info().Str("bin", bin).Msg("Reusing existing stack")
	} else if err != nil {
		panic(err)
	}

	start := time.Now()
	for i := 0; i < numElements; i++ {
		if err := c.Push(bin, []byte("Hello World "+strconv.Itoa(i)), nil); err != nil {
			panic(err)
		}
	}
	fmt.Println("Push: ", time.Since(start))
	fmt.Println("Push: ", time.Since(start)/time.Duration(numElements), "/element")

	stats, err := c.Stats(bin)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Stats: %+v\n", stats)

	start = time.Now()
	top, err := c.Peek(bin, 10, nil)
	if err != nil {
		panic(err)
	}
	fmt.Println("Peek: ", time.Since(start))
	for _, v := range top {
		fmt.Println(string(v))
	}

	start = time.Now()
	if err := c.Trim(bin, numElements/2); err != nil {
		panic(err)
	}
	fmt.Println("Trim: ", time.Since(start))

	if err := c.Verify(bin); err != nil {
		panic(err)
	}
	size, _ := c.Size(bin)
	fmt.Println("Size", size)
}
