package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AttachFingerprint stores or replaces the fingerprint for a media file. The
// operation is an idempotent upsert keyed by the file id.
func (s *Store) AttachFingerprint(ctx context.Context, fileID int64, fp Fingerprint) (*Fingerprint, error) {
	ctx = ensureContext(ctx)
	if err := s.requireFile(ctx, fileID, "attach fingerprint"); err != nil {
		return nil, err
	}
	if fp.AcoustIDScore != nil {
		if err := requireUnitRange("acoustid score", *fp.AcoustIDScore); err != nil {
			return nil, err
		}
	}

	sceneHashes, err := marshalJSON(fp.SceneHashes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(ctx,
		`INSERT INTO fingerprints (
            media_file_id, chromaprint_fingerprint, chromaprint_duration,
            acoustid_id, acoustid_score, video_hash, scene_hashes,
            duration, bitrate, sample_rate, channels, codec, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(media_file_id) DO UPDATE SET
            chromaprint_fingerprint = excluded.chromaprint_fingerprint,
            chromaprint_duration = excluded.chromaprint_duration,
            acoustid_id = excluded.acoustid_id,
            acoustid_score = excluded.acoustid_score,
            video_hash = excluded.video_hash,
            scene_hashes = excluded.scene_hashes,
            duration = excluded.duration,
            bitrate = excluded.bitrate,
            sample_rate = excluded.sample_rate,
            channels = excluded.channels,
            codec = excluded.codec`,
		fileID,
		nullableString(fp.Chromaprint),
		nullableFloat(fp.ChromaprintDuration),
		nullableString(fp.AcoustID),
		nullableFloat(fp.AcoustIDScore),
		nullableString(fp.VideoHash),
		sceneHashes,
		nullableFloat(fp.Duration),
		nullableInt(fp.Bitrate),
		nullableInt(fp.SampleRate),
		nullableInt(fp.Channels),
		nullableString(fp.Codec),
		now,
	)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "attach fingerprint", "upsert", err)
	}
	return s.GetFingerprint(ctx, fileID)
}

// GetFingerprint fetches the fingerprint for a media file.
func (s *Store) GetFingerprint(ctx context.Context, fileID int64) (*Fingerprint, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, media_file_id, chromaprint_fingerprint, chromaprint_duration,
            acoustid_id, acoustid_score, video_hash, scene_hashes,
            duration, bitrate, sample_rate, channels, codec, created_at
        FROM fingerprints WHERE media_file_id = ?`, fileID)

	var (
		fp          Fingerprint
		chromaprint sql.NullString
		chromaDur   sql.NullFloat64
		acoustID    sql.NullString
		acoustScore sql.NullFloat64
		videoHash   sql.NullString
		sceneHashes sql.NullString
		duration    sql.NullFloat64
		bitrate     sql.NullInt64
		sampleRate  sql.NullInt64
		channels    sql.NullInt64
		codec       sql.NullString
		createdRaw  sql.NullString
	)
	err := row.Scan(
		&fp.ID, &fp.MediaFileID, &chromaprint, &chromaDur,
		&acoustID, &acoustScore, &videoHash, &sceneHashes,
		&duration, &bitrate, &sampleRate, &channels, &codec, &createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get fingerprint", fmt.Sprintf("media file %d", fileID), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get fingerprint", "scan", err)
	}

	fp.Chromaprint = chromaprint.String
	fp.AcoustID = acoustID.String
	fp.VideoHash = videoHash.String
	fp.Codec = codec.String
	if chromaDur.Valid {
		fp.ChromaprintDuration = &chromaDur.Float64
	}
	if acoustScore.Valid {
		fp.AcoustIDScore = &acoustScore.Float64
	}
	if duration.Valid {
		fp.Duration = &duration.Float64
	}
	if bitrate.Valid {
		fp.Bitrate = &bitrate.Int64
	}
	if sampleRate.Valid {
		fp.SampleRate = &sampleRate.Int64
	}
	if channels.Valid {
		fp.Channels = &channels.Int64
	}
	if err := unmarshalJSON(sceneHashes, &fp.SceneHashes); err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get fingerprint", "decode scene hashes", err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		fp.CreatedAt = created
	}
	return &fp, nil
}

// AttachMetadata stores or replaces the enriched metadata for a media file.
// An Italian-music flag without its confidence score is rejected: downstream
// boost logic depends on that value being present.
func (s *Store) AttachMetadata(ctx context.Context, fileID int64, md MediaMetadata) (*MediaMetadata, error) {
	ctx = ensureContext(ctx)
	if err := s.requireFile(ctx, fileID, "attach metadata"); err != nil {
		return nil, err
	}
	if md.IsItalian && md.ItalianConfidence == nil {
		return nil, Wrap(ErrValidation, "attach metadata",
			"is_italian requires italian_confidence", nil)
	}
	if md.ItalianConfidence != nil {
		if err := requireUnitRange("italian confidence", *md.ItalianConfidence); err != nil {
			return nil, err
		}
	}
	if err := requireUnitRange("metadata quality", md.MetadataQuality); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO media_metadata (
            media_file_id, title, artist, album, year, genre,
            musicbrainz_id, musicbrainz_artist_id, musicbrainz_album_id,
            track_number, disc_number, tmdb_id, imdb_id, season, episode,
            description, language, country, is_italian, italian_confidence,
            artwork_url, artwork_local_path, metadata_source, metadata_quality,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(media_file_id) DO UPDATE SET
            title = excluded.title,
            artist = excluded.artist,
            album = excluded.album,
            year = excluded.year,
            genre = excluded.genre,
            musicbrainz_id = excluded.musicbrainz_id,
            musicbrainz_artist_id = excluded.musicbrainz_artist_id,
            musicbrainz_album_id = excluded.musicbrainz_album_id,
            track_number = excluded.track_number,
            disc_number = excluded.disc_number,
            tmdb_id = excluded.tmdb_id,
            imdb_id = excluded.imdb_id,
            season = excluded.season,
            episode = excluded.episode,
            description = excluded.description,
            language = excluded.language,
            country = excluded.country,
            is_italian = excluded.is_italian,
            italian_confidence = excluded.italian_confidence,
            artwork_url = excluded.artwork_url,
            artwork_local_path = excluded.artwork_local_path,
            metadata_source = excluded.metadata_source,
            metadata_quality = excluded.metadata_quality,
            updated_at = excluded.updated_at`,
		fileID,
		nullableString(md.Title),
		nullableString(md.Artist),
		nullableString(md.Album),
		nullableInt(md.Year),
		nullableString(md.Genre),
		nullableString(md.MusicBrainzID),
		nullableString(md.MusicBrainzArtist),
		nullableString(md.MusicBrainzAlbum),
		nullableInt(md.TrackNumber),
		nullableInt(md.DiscNumber),
		nullableInt(md.TMDBID),
		nullableString(md.IMDBID),
		nullableInt(md.Season),
		nullableInt(md.Episode),
		nullableString(md.Description),
		nullableString(md.Language),
		nullableString(md.Country),
		boolToInt(md.IsItalian),
		nullableFloat(md.ItalianConfidence),
		nullableString(md.ArtworkURL),
		nullableString(md.ArtworkLocalPath),
		nullableString(md.MetadataSource),
		md.MetadataQuality,
		now,
		now,
	)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "attach metadata", "upsert", err)
	}
	return s.GetMetadata(ctx, fileID)
}

// GetMetadata fetches the enriched metadata for a media file.
func (s *Store) GetMetadata(ctx context.Context, fileID int64) (*MediaMetadata, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, media_file_id, title, artist, album, year, genre,
            musicbrainz_id, musicbrainz_artist_id, musicbrainz_album_id,
            track_number, disc_number, tmdb_id, imdb_id, season, episode,
            description, language, country, is_italian, italian_confidence,
            artwork_url, artwork_local_path, metadata_source, metadata_quality,
            created_at, updated_at
        FROM media_metadata WHERE media_file_id = ?`, fileID)

	var (
		md          MediaMetadata
		title       sql.NullString
		artist      sql.NullString
		album       sql.NullString
		year        sql.NullInt64
		genre       sql.NullString
		mbID        sql.NullString
		mbArtist    sql.NullString
		mbAlbum     sql.NullString
		trackNumber sql.NullInt64
		discNumber  sql.NullInt64
		tmdbID      sql.NullInt64
		imdbID      sql.NullString
		season      sql.NullInt64
		episode     sql.NullInt64
		description sql.NullString
		language    sql.NullString
		country     sql.NullString
		isItalian   sql.NullInt64
		italianConf sql.NullFloat64
		artworkURL  sql.NullString
		artworkPath sql.NullString
		source      sql.NullString
		quality     sql.NullFloat64
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	err := row.Scan(
		&md.ID, &md.MediaFileID, &title, &artist, &album, &year, &genre,
		&mbID, &mbArtist, &mbAlbum,
		&trackNumber, &discNumber, &tmdbID, &imdbID, &season, &episode,
		&description, &language, &country, &isItalian, &italianConf,
		&artworkURL, &artworkPath, &source, &quality,
		&createdRaw, &updatedRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get metadata", fmt.Sprintf("media file %d", fileID), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get metadata", "scan", err)
	}

	md.Title = title.String
	md.Artist = artist.String
	md.Album = album.String
	md.Genre = genre.String
	md.MusicBrainzID = mbID.String
	md.MusicBrainzArtist = mbArtist.String
	md.MusicBrainzAlbum = mbAlbum.String
	md.IMDBID = imdbID.String
	md.Description = description.String
	md.Language = language.String
	md.Country = country.String
	md.ArtworkURL = artworkURL.String
	md.ArtworkLocalPath = artworkPath.String
	md.MetadataSource = source.String
	md.MetadataQuality = quality.Float64
	if year.Valid {
		md.Year = &year.Int64
	}
	if trackNumber.Valid {
		md.TrackNumber = &trackNumber.Int64
	}
	if discNumber.Valid {
		md.DiscNumber = &discNumber.Int64
	}
	if tmdbID.Valid {
		md.TMDBID = &tmdbID.Int64
	}
	if season.Valid {
		md.Season = &season.Int64
	}
	if episode.Valid {
		md.Episode = &episode.Int64
	}
	if isItalian.Valid {
		md.IsItalian = isItalian.Int64 != 0
	}
	if italianConf.Valid {
		md.ItalianConfidence = &italianConf.Float64
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		md.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		md.UpdatedAt = updated
	}
	return &md, nil
}

// AttachFeatures stores or replaces the extracted ML feature arrays for a
// media file.
func (s *Store) AttachFeatures(ctx context.Context, fileID int64, ft MLFeatures) (*MLFeatures, error) {
	ctx = ensureContext(ctx)
	if err := s.requireFile(ctx, fileID, "attach features"); err != nil {
		return nil, err
	}

	columns := []struct {
		name  string
		value any
	}{
		{"mfcc", ft.MFCC},
		{"spectral_centroid", ft.SpectralCentroid},
		{"spectral_rolloff", ft.SpectralRolloff},
		{"spectral_contrast", ft.SpectralContrast},
		{"zero_crossing_rate", ft.ZeroCrossingRate},
		{"chroma", ft.Chroma},
		{"feature_vector", ft.FeatureVector},
		{"italian_language_features", ft.ItalianLanguageFeatures},
	}
	encoded := make(map[string]any, len(columns))
	for _, col := range columns {
		value, err := marshalJSON(col.value)
		if err != nil {
			return nil, err
		}
		encoded[col.name] = value
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO ml_features (
            media_file_id, mfcc, spectral_centroid, spectral_rolloff,
            spectral_contrast, zero_crossing_rate, tempo, chroma,
            feature_vector, italian_language_features, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(media_file_id) DO UPDATE SET
            mfcc = excluded.mfcc,
            spectral_centroid = excluded.spectral_centroid,
            spectral_rolloff = excluded.spectral_rolloff,
            spectral_contrast = excluded.spectral_contrast,
            zero_crossing_rate = excluded.zero_crossing_rate,
            tempo = excluded.tempo,
            chroma = excluded.chroma,
            feature_vector = excluded.feature_vector,
            italian_language_features = excluded.italian_language_features`,
		fileID,
		encoded["mfcc"],
		encoded["spectral_centroid"],
		encoded["spectral_rolloff"],
		encoded["spectral_contrast"],
		encoded["zero_crossing_rate"],
		nullableFloat(ft.Tempo),
		encoded["chroma"],
		encoded["feature_vector"],
		encoded["italian_language_features"],
		now,
	)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "attach features", "upsert", err)
	}
	return s.GetFeatures(ctx, fileID)
}

// GetFeatures fetches the extracted ML features for a media file.
func (s *Store) GetFeatures(ctx context.Context, fileID int64) (*MLFeatures, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, media_file_id, mfcc, spectral_centroid, spectral_rolloff,
            spectral_contrast, zero_crossing_rate, tempo, chroma,
            feature_vector, italian_language_features, created_at
        FROM ml_features WHERE media_file_id = ?`, fileID)

	var (
		ft               MLFeatures
		mfcc             sql.NullString
		spectralCentroid sql.NullString
		spectralRolloff  sql.NullString
		spectralContrast sql.NullString
		zeroCrossing     sql.NullString
		tempo            sql.NullFloat64
		chroma           sql.NullString
		featureVector    sql.NullString
		italianFeatures  sql.NullString
		createdRaw       sql.NullString
	)
	err := row.Scan(
		&ft.ID, &ft.MediaFileID, &mfcc, &spectralCentroid, &spectralRolloff,
		&spectralContrast, &zeroCrossing, &tempo, &chroma,
		&featureVector, &italianFeatures, &createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get features", fmt.Sprintf("media file %d", fileID), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get features", "scan", err)
	}

	if tempo.Valid {
		ft.Tempo = &tempo.Float64
	}
	decodes := []struct {
		raw sql.NullString
		run func(sql.NullString) error
	}{
		{mfcc, func(r sql.NullString) error { return unmarshalJSON(r, &ft.MFCC) }},
		{spectralCentroid, func(r sql.NullString) error { return unmarshalJSON(r, &ft.SpectralCentroid) }},
		{spectralRolloff, func(r sql.NullString) error { return unmarshalJSON(r, &ft.SpectralRolloff) }},
		{spectralContrast, func(r sql.NullString) error { return unmarshalJSON(r, &ft.SpectralContrast) }},
		{zeroCrossing, func(r sql.NullString) error { return unmarshalJSON(r, &ft.ZeroCrossingRate) }},
		{chroma, func(r sql.NullString) error { return unmarshalJSON(r, &ft.Chroma) }},
		{featureVector, func(r sql.NullString) error { return unmarshalJSON(r, &ft.FeatureVector) }},
		{italianFeatures, func(r sql.NullString) error { return unmarshalJSON(r, &ft.ItalianLanguageFeatures) }},
	}
	for _, d := range decodes {
		if err := d.run(d.raw); err != nil {
			return nil, Wrap(ErrStorageUnavailable, "get features", "decode feature column", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		ft.CreatedAt = created
	}
	return &ft, nil
}

// requireFile fails with ErrNotFound when the media file id is unknown.
func (s *Store) requireFile(ctx context.Context, fileID int64, operation string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM media_files WHERE id = ?`, fileID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(ErrNotFound, operation, fmt.Sprintf("media file %d", fileID), nil)
	}
	if err != nil {
		return Wrap(ErrStorageUnavailable, operation, "check media file", err)
	}
	return nil
}

func requireUnitRange(name string, value float64) error {
	if value < 0.0 || value > 1.0 {
		return Wrap(ErrValidation, "attach child",
			fmt.Sprintf("%s %g outside [0,1]", name, value), nil)
	}
	return nil
}
