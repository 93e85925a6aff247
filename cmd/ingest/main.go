package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/philippgille/chromem-go"

	"medassist/internal/config"
	"medassist/internal/docstore"
	"medassist/internal/ingest"
)

var sampleDocs = map[string]string{
	"hypertension.txt": "Normal blood pressure is below 120/80 mmHg. Elevated blood pressure is 120-129 systolic and below 80 diastolic. " +
		"Hypertension stage 1 is 130-139 systolic or 80-89 diastolic. Hypertension stage 2 is 140 or higher systolic or 90 or higher diastolic. " +
		"High blood pressure often has no symptoms and is usually found during routine checkups. " +
		"Lifestyle changes such as reducing salt intake, regular exercise, limiting alcohol and managing stress can lower blood pressure. " +
		"Anyone with consistently high readings should consult a healthcare professional.",
	"headache.txt": "Tension headaches are the most common type of headache and feel like a dull ache or tight band around the head. " +
		"They are often triggered by stress, poor posture, dehydration or lack of sleep. " +
		"Rest, hydration, and over-the-counter pain relief usually help. " +
		"A sudden severe headache, a headache after a head injury, or a headache with fever and stiff neck needs urgent medical attention.",
	"diabetes.txt": "Type 2 diabetes develops when the body becomes resistant to insulin or does not produce enough insulin. " +
		"Common symptoms include increased thirst, frequent urination, fatigue and blurred vision. " +
		"A fasting blood sugar of 126 mg/dL or higher on two separate tests indicates diabetes. " +
		"Management combines a balanced diet, regular physical activity, weight control and medication when prescribed.",
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of documents to ingest")
		sample     = flag.Bool("sample", false, "seed the store with the bundled sample documents")
		configPath = flag.String("config", os.Getenv("MEDASSIST_CONFIG"), "path to config file")
	)
	flag.Parse()

	if *dir == "" && !*sample {
		log.Fatal("nothing to do: pass -dir or -sample")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	embed := chromem.NewEmbeddingFuncOpenAICompat(
		cfg.DocStore.EmbeddingBaseURL,
		cfg.DocStore.EmbeddingAPIKey,
		cfg.DocStore.EmbeddingModel,
		nil,
	)
	store, err := docstore.NewPersistent(cfg.DocStore.PersistDir, embed)
	if err != nil {
		log.Fatalf("open docstore: %v", err)
	}

	ctx := context.Background()
	total := 0

	if *sample {
		for name, text := range sampleDocs {
			n, err := ingestText(ctx, store, name, text)
			if err != nil {
				log.Fatalf("ingest sample %s: %v", name, err)
			}
			total += n
		}
	}

	if *dir != "" {
		n, err := ingestDir(ctx, store, *dir)
		if err != nil {
			log.Fatalf("ingest %s: %v", *dir, err)
		}
		total += n
	}

	log.Printf("ingested %d chunks, store now holds %d", total, store.Count())
}

func ingestDir(ctx context.Context, store *docstore.Store, dir string) (int, error) {
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return 0, err
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return 0, err
	}

	total := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		docs, err := loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			log.Printf("skip %s: %v", path, err)
			return nil
		}
		for _, doc := range docs {
			n, err := ingestText(ctx, store, filepath.Base(path), doc.Content)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}

func ingestText(ctx context.Context, store *docstore.Store, source, text string) (int, error) {
	chunks := ingest.Chunk(text, ingest.DefaultChunkSize, ingest.DefaultOverlap, ingest.DefaultMinChunk)
	for _, chunk := range chunks {
		if _, err := store.Add(ctx, chunk, map[string]string{"source": source}); err != nil {
			return 0, err
		}
	}
	return len(chunks), nil
}
