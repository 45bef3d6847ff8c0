// albumctl — административная утилита выбора альбома недели.
// Команды бота запись не меняют, её обновляют отсюда или правкой файла.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"album-club-bot/internal/adapters/currentalbum"
	"album-club-bot/internal/adapters/spotify"
	"album-club-bot/internal/infra/config"
	"album-club-bot/internal/infra/log"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	store := currentalbum.NewFileStore(cfg.CurrentAlbumFile, logger)

	switch os.Args[1] {
	case "set":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		catalog := spotify.NewClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, 10*time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		album, err := catalog.Resolve(ctx, os.Args[2])
		if err != nil {
			logger.Fatal().Err(err).Str("input", os.Args[2]).Msg("не удалось проверить альбом")
		}
		if !album.IsFullAlbum() {
			logger.Fatal().Str("album_type", album.AlbumType).Msg("это не полноформатный альбом")
		}
		if err := store.Set(album.ID, album.Name, album.ArtistLine()); err != nil {
			logger.Fatal().Err(err).Msg("не удалось записать альбом недели")
		}
		fmt.Printf("Альбом недели: «%s» — %s (%s)\n", album.Name, album.ArtistLine(), album.ID)
	case "show":
		album, err := store.Get()
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось прочитать альбом недели")
		}
		if album == nil {
			fmt.Println("Альбом недели не выбран.")
			return
		}
		fmt.Printf("«%s» — %s (%s), выбран %s\n", album.Name, album.Artist, album.AlbumID, album.DateSelected)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "использование: albumctl set <ссылка-на-альбом> | albumctl show")
}
