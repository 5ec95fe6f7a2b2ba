package utils

//run redis
//docker run -p 6379:6379 -d redis

//docker run
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant

//pgvector
//docker run -p 5432:5432 -e POSTGRES_PASSWORD=docqa -d pgvector/pgvector:pg17

//swagger init
//swag init -g cmd/docqa/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/docqa/docs
